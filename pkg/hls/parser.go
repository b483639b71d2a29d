// Generic HLS parser
//
// Low-level HLS parsing:
// - Line-by-line processing
// - Tag identification
// - Attribute parsing
// - Protocol compliance checking

package hls

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Common errors
var (
	ErrPlaylistFormat = errors.New("invalid playlist format")
	ErrPlaylistHeader = errors.New("missing #EXTM3U header")
	ErrTagFormat      = errors.New("invalid tag format")
)

var knownTags = map[string]bool{
	TagExtM3U: true, TagVersion: true, TagStreamInf: true, TagMediaSequence: true,
	TagMedia: true, TagIFrameStreamInf: true, TagSessionData: true,
	TagIndependentSegments: true, TagTargetDuration: true, TagInf: true,
	TagByteRange: true, TagDiscontinuity: true, TagKey: true, TagMap: true,
	TagProgramDateTime: true, TagEndList: true, TagDiscontinuitySequence: true,
	TagAllowCache: true, TagPlaylistType: true, TagIFramesOnly: true, TagDateRange: true,
}

// Parser represents an HLS playlist parser
type Parser struct {
	playlist *Playlist

	pendingKey            *Key
	pendingMap            *Map
	pendingDiscontinuity  bool
	pendingByteRange      string
	pendingPDT            *time.Time
	pendingHasExplicitPDT bool
	pendingExtra          []string
}

// New creates a new HLS parser
func New() *Parser {
	return &Parser{
		playlist: NewPlaylist(),
	}
}

// Parse parses an HLS playlist from a reader
func (p *Parser) Parse(r io.Reader) (*Playlist, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	p.playlist.CRLF = bytes.Contains(raw, []byte("\r\n"))

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNum := 0
	var lastTag *Tag

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		lineNum++

		if strings.TrimSpace(line) == "" {
			continue
		}

		if lineNum == 1 {
			if line != TagExtM3U {
				return nil, ErrPlaylistHeader
			}
			continue
		}

		if strings.HasPrefix(line, "#") {
			if !strings.HasPrefix(line, "#EXT") {
				// Ordinary comment; preserve verbatim like any unknown tag.
				p.pendingExtra = append(p.pendingExtra, line)
				continue
			}

			lastTag, err = p.parseTag(line)
			if err != nil {
				return nil, err
			}

			if !knownTags[lastTag.Name] {
				p.pendingExtra = append(p.pendingExtra, line)
				continue
			}

			if err := p.processTag(lastTag); err != nil {
				return nil, err
			}
		} else {
			if lastTag != nil && lastTag.Name == TagStreamInf {
				if err := p.processVariantURI(lastTag, line); err != nil {
					return nil, err
				}
			} else {
				if err := p.processSegmentURI(lastTag, line); err != nil {
					return nil, err
				}
			}
			lastTag = nil
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(p.playlist.Master.Variants) > 0 {
		p.playlist.Type = PlaylistTypeMaster
	} else if len(p.playlist.Media.Segments) > 0 || p.playlist.Media.TargetDuration > 0 {
		p.playlist.Type = PlaylistTypeMedia
	}

	// Anything still pending (unknown tags after the last segment/variant,
	// or an entire prelude when the playlist never reached a segment) is
	// attached to the playlist-level prelude of whichever type we ended up
	// being, so it's never silently dropped.
	if len(p.pendingExtra) > 0 {
		if p.playlist.Type == PlaylistTypeMaster {
			p.playlist.Master.Prelude = append(p.playlist.Master.Prelude, p.pendingExtra...)
		} else {
			p.playlist.Media.Prelude = append(p.playlist.Media.Prelude, p.pendingExtra...)
		}
	}

	return p.playlist, nil
}

// ComputeEffectivePDTs fills in Segment.PDT for every segment of a media
// playlist, propagating from whatever #EXT-X-PROGRAM-DATE-TIME anchors were
// present in the source. When no anchor exists anywhere: a VoD playlist
// (EndList true) is anchored at vodFallback (normally the time the origin
// fetch completed); a live playlist is left with every PDT nil and
// Media.PDTMissing set, since the proxy cannot place ad breaks in a
// playlist window it cannot place on the clock.
func (p *Playlist) ComputeEffectivePDTs(vodFallback time.Time) {
	m := &p.Media
	segs := m.Segments
	if len(segs) == 0 {
		return
	}

	var cur *time.Time
	for i := range segs {
		if segs[i].HasExplicitPDT && segs[i].PDT != nil {
			t := *segs[i].PDT
			cur = &t
		} else if cur != nil {
			t := *cur
			segs[i].PDT = &t
		}
		if cur != nil {
			next := cur.Add(durationFromSeconds(segs[i].Duration))
			cur = &next
		}
	}

	var next *time.Time
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i].PDT != nil {
			t := *segs[i].PDT
			next = &t
		} else if next != nil {
			t := next.Add(-durationFromSeconds(segs[i].Duration))
			segs[i].PDT = &t
			next = &t
		}
	}

	if segs[0].PDT != nil {
		return
	}

	if !m.EndList {
		m.PDTMissing = true
		return
	}

	t := vodFallback
	segs[0].PDT = &t
	cur = &t
	for i := range segs {
		if i > 0 && segs[i].PDT == nil {
			v := *cur
			segs[i].PDT = &v
		}
		next := cur.Add(durationFromSeconds(segs[i].Duration))
		cur = &next
	}
}

// parseTag parses an HLS tag into a Tag structure
func (p *Parser) parseTag(line string) (*Tag, error) {
	tag := &Tag{
		RawLine: line,
	}

	colonIndex := strings.Index(line, ":")
	if colonIndex == -1 {
		tag.Name = line
		return tag, nil
	}

	tag.Name = line[:colonIndex]
	tag.Value = line[colonIndex+1:]

	if tag.Name == TagStreamInf || tag.Name == TagMedia ||
		tag.Name == TagIFrameStreamInf || tag.Name == TagKey ||
		tag.Name == TagMap || tag.Name == TagSessionData ||
		tag.Name == TagDateRange {
		attrs, err := parseAttributes(tag.Value)
		if err != nil {
			return nil, err
		}
		tag.Attributes = attrs
	}

	return tag, nil
}

// processTag processes a tag and updates the playlist
func (p *Parser) processTag(tag *Tag) error {
	switch tag.Name {
	case TagVersion:
		ver, err := strconv.Atoi(tag.Value)
		if err != nil {
			return fmt.Errorf("%w: invalid version: %v", ErrTagFormat, err)
		}
		p.playlist.Version = ver
		p.playlist.VersionPresent = true

	case TagTargetDuration:
		dur, err := strconv.ParseFloat(tag.Value, 64)
		if err != nil {
			return fmt.Errorf("%w: invalid target duration: %v", ErrTagFormat, err)
		}
		p.playlist.Media.TargetDuration = dur
		p.playlist.Type = PlaylistTypeMedia

	case TagMediaSequence:
		seq, err := strconv.ParseUint(tag.Value, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: invalid media sequence: %v", ErrTagFormat, err)
		}
		p.playlist.Media.MediaSequence = seq
		p.playlist.Type = PlaylistTypeMedia

	case TagDiscontinuitySequence:
		seq, err := strconv.ParseUint(tag.Value, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: invalid discontinuity sequence: %v", ErrTagFormat, err)
		}
		p.playlist.Media.DiscontinuitySeq = seq
		p.playlist.Media.DiscontinuitySeqPresent = true
		p.playlist.Type = PlaylistTypeMedia

	case TagEndList:
		p.playlist.Media.EndList = true
		p.playlist.Type = PlaylistTypeMedia

	case TagAllowCache:
		p.playlist.Media.AllowCache = tag.Value != "NO"
		p.playlist.Media.AllowCachePresent = true
		p.playlist.Type = PlaylistTypeMedia

	case TagPlaylistType:
		p.playlist.Media.PlaylistType = tag.Value
		p.playlist.Type = PlaylistTypeMedia

	case TagIFramesOnly:
		p.playlist.Media.IFramesOnly = true
		p.playlist.Type = PlaylistTypeMedia

	case TagIndependentSegments:
		if p.playlist.Type == PlaylistTypeMaster || p.playlist.Type == PlaylistTypeUnknown {
			p.playlist.Master.HasIndependentSegments = true
		} else {
			p.playlist.Media.HasIndependentSegments = true
		}

	case TagMedia:
		if err := p.processMediaGroup(tag); err != nil {
			return err
		}
		p.playlist.Type = PlaylistTypeMaster

	case TagIFrameStreamInf:
		if err := p.processIFrameStream(tag); err != nil {
			return err
		}
		p.playlist.Type = PlaylistTypeMaster

	case TagSessionData:
		if err := p.processSessionData(tag); err != nil {
			return err
		}
		p.playlist.Type = PlaylistTypeMaster

	case TagDateRange:
		if err := p.processDateRange(tag); err != nil {
			return err
		}
		p.playlist.Type = PlaylistTypeMedia

	case TagStreamInf:
		p.playlist.Type = PlaylistTypeMaster

	case TagInf:
		p.playlist.Type = PlaylistTypeMedia

	case TagDiscontinuity:
		p.pendingDiscontinuity = true
		p.playlist.Type = PlaylistTypeMedia

	case TagByteRange:
		p.pendingByteRange = tag.Value
		p.playlist.Type = PlaylistTypeMedia

	case TagProgramDateTime:
		t, err := time.Parse(time.RFC3339Nano, tag.Value)
		if err != nil {
			return fmt.Errorf("%w: invalid program-date-time: %v", ErrTagFormat, err)
		}
		p.pendingPDT = &t
		p.pendingHasExplicitPDT = true
		p.playlist.Type = PlaylistTypeMedia

	case TagKey:
		p.pendingKey = &Key{
			Method:            KeyMethod(tag.Attributes[AttrMethod]),
			URI:               tag.Attributes[AttrURI],
			IV:                tag.Attributes[AttrIV],
			KeyFormat:         tag.Attributes[AttrKeyFormat],
			KeyFormatVersions: tag.Attributes[AttrKeyFormatVersions],
			RawAttributes:     tag.Value,
		}
		p.playlist.Type = PlaylistTypeMedia

	case TagMap:
		p.pendingMap = &Map{
			URI:           tag.Attributes[AttrURI],
			ByteRange:     tag.Attributes["BYTERANGE"],
			RawAttributes: tag.Value,
		}
		p.playlist.Type = PlaylistTypeMedia
	}

	return nil
}

// processVariantURI processes a variant URI line in a master playlist
func (p *Parser) processVariantURI(tag *Tag, uri string) error {
	if tag.Name != TagStreamInf {
		return fmt.Errorf("%w: expected EXT-X-STREAM-INF tag before URI, got %s", ErrPlaylistFormat, tag.Name)
	}

	bandwidth, err := parseAttributeUint(tag.Attributes, AttrBandwidth)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPlaylistFormat, err)
	}

	p.playlist.AddVariant(uri, bandwidth, tag.Attributes)
	return nil
}

// processSegmentURI processes a segment URI line in a media playlist
func (p *Parser) processSegmentURI(tag *Tag, uri string) error {
	if tag == nil || tag.Name != TagInf {
		return fmt.Errorf("%w: segment URI must follow EXTINF tag", ErrPlaylistFormat)
	}

	duration, title, err := parseInfValue(tag.Value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPlaylistFormat, err)
	}

	seg := Segment{
		URI:            uri,
		Duration:       duration,
		Title:          title,
		ByteRange:      p.pendingByteRange,
		Discontinuity:  p.pendingDiscontinuity,
		Key:            p.pendingKey,
		Map:            p.pendingMap,
		PDT:            p.pendingPDT,
		HasExplicitPDT: p.pendingHasExplicitPDT,
		ExtraTags:      p.pendingExtra,
	}
	p.playlist.Media.Segments = append(p.playlist.Media.Segments, seg)
	p.playlist.Type = PlaylistTypeMedia

	p.pendingByteRange = ""
	p.pendingDiscontinuity = false
	p.pendingPDT = nil
	p.pendingHasExplicitPDT = false
	p.pendingExtra = nil
	// Key and Map persist across segments until replaced, per HLS semantics.

	return nil
}

// processMediaGroup processes a media group tag
func (p *Parser) processMediaGroup(tag *Tag) error {
	typeVal, ok := tag.Attributes[AttrType]
	if !ok {
		return fmt.Errorf("%w: missing TYPE attribute in EXT-X-MEDIA", ErrPlaylistFormat)
	}
	groupID, ok := tag.Attributes[AttrGroupID]
	if !ok {
		return fmt.Errorf("%w: missing GROUP-ID attribute in EXT-X-MEDIA", ErrPlaylistFormat)
	}

	group := MediaGroup{
		Type:            typeVal,
		GroupID:         groupID,
		Name:            tag.Attributes[AttrName],
		URI:             tag.Attributes[AttrURI],
		Language:        tag.Attributes[AttrLanguage],
		AssocLanguage:   tag.Attributes[AttrAssocLanguage],
		Default:         tag.Attributes[AttrDefault] == "YES",
		Autoselect:      tag.Attributes[AttrAutoselect] == "YES",
		Forced:          tag.Attributes[AttrForced] == "YES",
		InstreamID:      tag.Attributes[AttrInstreamID],
		Characteristics: tag.Attributes[AttrCharacteristics],
		Channels:        tag.Attributes[AttrChannels],
		RawAttributes:   tag.Value,
	}

	p.playlist.Master.MediaGroups = append(p.playlist.Master.MediaGroups, group)
	return nil
}

// processIFrameStream processes an I-frame stream tag
func (p *Parser) processIFrameStream(tag *Tag) error {
	uri, ok := tag.Attributes[AttrURI]
	if !ok {
		return fmt.Errorf("%w: missing URI attribute in EXT-X-I-FRAME-STREAM-INF", ErrPlaylistFormat)
	}

	bandwidth, err := parseAttributeUint(tag.Attributes, AttrBandwidth)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPlaylistFormat, err)
	}

	iframe := IFrameStream{
		URI:           uri,
		Bandwidth:     bandwidth,
		Codecs:        tag.Attributes[AttrCodecs],
		Resolution:    tag.Attributes[AttrResolution],
		HDCPLevel:     tag.Attributes[AttrHDCPLevel],
		VideoGroup:    tag.Attributes[AttrVideo],
		RawAttributes: tag.Value,
	}
	if avgBw, ok := tag.Attributes[AttrAverageBandwidth]; ok {
		if val, err := strconv.ParseUint(avgBw, 10, 64); err == nil {
			iframe.AverageBandwidth = val
		}
	}

	p.playlist.Master.IFrameStreams = append(p.playlist.Master.IFrameStreams, iframe)
	return nil
}

// processSessionData processes a session data tag
func (p *Parser) processSessionData(tag *Tag) error {
	dataID, ok := tag.Attributes[AttrDataID]
	if !ok {
		return fmt.Errorf("%w: missing DATA-ID attribute in EXT-X-SESSION-DATA", ErrPlaylistFormat)
	}

	p.playlist.Master.SessionData = append(p.playlist.Master.SessionData, SessionData{
		DataID:        dataID,
		Value:         tag.Attributes[AttrValue],
		URI:           tag.Attributes[AttrURI],
		Language:      tag.Attributes[AttrLanguage],
		RawAttributes: tag.Value,
	})
	return nil
}

// processDateRange processes an EXT-X-DATERANGE tag
func (p *Parser) processDateRange(tag *Tag) error {
	id, ok := tag.Attributes[AttrID]
	if !ok {
		return fmt.Errorf("%w: missing ID attribute in EXT-X-DATERANGE", ErrPlaylistFormat)
	}
	startStr, ok := tag.Attributes[AttrStartDate]
	if !ok {
		return fmt.Errorf("%w: missing START-DATE attribute in EXT-X-DATERANGE", ErrPlaylistFormat)
	}
	start, err := time.Parse(time.RFC3339Nano, startStr)
	if err != nil {
		return fmt.Errorf("%w: invalid START-DATE: %v", ErrPlaylistFormat, err)
	}

	dr := DateRange{
		ID:        id,
		Class:     tag.Attributes[AttrClass],
		StartDate: start,
		AssetList: tag.Attributes[AttrAssetList],
		Restrict:  tag.Attributes[AttrRestrict],
		Snap:      tag.Attributes[AttrSnap],
	}
	if durStr, ok := tag.Attributes[AttrDuration]; ok {
		if v, err := strconv.ParseFloat(durStr, 64); err == nil {
			dr.Duration = v
		}
	}
	if offStr, ok := tag.Attributes[AttrResumeOffset]; ok {
		if v, err := strconv.ParseFloat(offStr, 64); err == nil {
			dr.ResumeOffset = &v
		}
	}

	p.playlist.Media.DateRanges = append(p.playlist.Media.DateRanges, dr)
	return nil
}

// parseAttributes parses a string of comma-separated attributes
func parseAttributes(s string) (map[string]string, error) {
	attrs := make(map[string]string)
	r := regexp.MustCompile(`([A-Z0-9-]+)=("[^"]*"|[^",]+)`)

	matches := r.FindAllStringSubmatch(s, -1)
	for _, match := range matches {
		if len(match) != 3 {
			continue
		}

		key := match[1]
		value := match[2]

		if strings.HasPrefix(value, "\"") && strings.HasSuffix(value, "\"") {
			value = value[1 : len(value)-1]
		}

		attrs[key] = value
	}

	return attrs, nil
}

// parseAttributeUint parses a uint64 attribute
func parseAttributeUint(attrs map[string]string, name string) (uint64, error) {
	valStr, ok := attrs[name]
	if !ok {
		return 0, fmt.Errorf("missing %s attribute", name)
	}

	val, err := strconv.ParseUint(valStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %w", name, err)
	}

	return val, nil
}

// parseInfValue parses the value of an EXTINF tag
func parseInfValue(s string) (float64, string, error) {
	parts := strings.SplitN(s, ",", 2)

	duration, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid EXTINF duration: %w", err)
	}

	var title string
	if len(parts) > 1 {
		title = parts[1]
	}

	return duration, title, nil
}
