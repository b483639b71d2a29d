// HLS playlist data structures
//
// Type definitions for HLS playlists:
// - Master playlist structure
// - Media playlist structure
// - Segment and date-range information
// - Tag representation

package hls

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var uriAttrPattern = regexp.MustCompile(`URI="[^"]*"`)

// setURIAttr replaces the URI="..." attribute within raw with uri, or
// appends it if raw has no URI attribute. Used when serializing a
// MediaGroup/IFrameStream whose URI field was rewritten (e.g. by a
// playlist rewriter rebasing URLs) after the RawAttributes string was
// captured verbatim from the source at parse time.
func setURIAttr(raw, uri string) string {
	if uri == "" {
		return raw
	}
	replacement := fmt.Sprintf("%s=%q", AttrURI, uri)
	if uriAttrPattern.MatchString(raw) {
		return uriAttrPattern.ReplaceAllString(raw, replacement)
	}
	if raw == "" {
		return replacement
	}
	return raw + "," + replacement
}

// Playlist represents an HLS playlist (either master or media)
type Playlist struct {
	Type    PlaylistType
	Version int
	// VersionPresent tracks whether #EXT-X-VERSION appeared in the source,
	// so an unmodified re-serialization doesn't invent the tag.
	VersionPresent bool
	// CRLF preserves the newline style of the source text.
	CRLF bool

	Master MasterPlaylist
	Media  MediaPlaylist
}

// MasterPlaylist contains data specific to master playlists
type MasterPlaylist struct {
	Variants               []Variant
	MediaGroups            []MediaGroup
	IFrameStreams          []IFrameStream
	SessionData            []SessionData
	HasIndependentSegments bool
	// Prelude holds every unrecognized tag or comment line of the source,
	// wherever it appeared, preserved verbatim but written back at the top
	// of the playlist, before the modeled tags.
	Prelude []string
}

// MediaPlaylist contains data specific to media playlists
type MediaPlaylist struct {
	TargetDuration   float64
	MediaSequence    uint64
	Segments         []Segment
	DateRanges       []DateRange
	EndList          bool
	DiscontinuitySeq uint64
	// *Present flags distinguish "tag absent in source" from "tag present
	// with the Go zero value", which matters for round-trip.
	DiscontinuitySeqPresent bool
	AllowCache              bool
	AllowCachePresent       bool
	PlaylistType            string
	IFramesOnly             bool
	HasIndependentSegments  bool
	// PDTMissing is set when no segment in a live playlist carries a PDT
	// anchor; the proxy handler serves such a playlist without ad
	// insertion.
	PDTMissing bool
	// Prelude holds unrecognized tag lines left over after the last
	// segment (all of them when the playlist has no segment), preserved
	// verbatim and written back before EXT-X-TARGETDURATION. Unrecognized
	// lines that precede a segment go to that segment's ExtraTags instead.
	Prelude []string
}

// Variant represents a stream variant in a master playlist
type Variant struct {
	URI                 string
	Bandwidth           uint64
	AverageBandwidth    uint64
	Codecs              string
	Resolution          string
	FrameRate           float64
	HDCPLevel           string
	AudioGroup          string
	VideoGroup          string
	SubtitlesGroup      string
	ClosedCaptionsGroup string
	RawAttributes       string
}

// MediaGroup represents a media group in a master playlist
type MediaGroup struct {
	Type            string
	GroupID         string
	Name            string
	URI             string
	Language        string
	AssocLanguage   string
	Default         bool
	Autoselect      bool
	Forced          bool
	InstreamID      string
	Characteristics string
	Channels        string
	RawAttributes   string
}

// IFrameStream represents an I-frame stream in a master playlist
type IFrameStream struct {
	URI              string
	Bandwidth        uint64
	AverageBandwidth uint64
	Codecs           string
	Resolution       string
	HDCPLevel        string
	VideoGroup       string
	RawAttributes    string
}

// SessionData represents session data in a master playlist
type SessionData struct {
	DataID        string
	Value         string
	URI           string
	Language      string
	RawAttributes string
}

// Segment represents a media segment in a media playlist
type Segment struct {
	URI           string
	Duration      float64
	Title         string
	ByteRange     string
	Discontinuity bool
	// PDT is the effective program-date-time for this segment: either the
	// value parsed directly off #EXT-X-PROGRAM-DATE-TIME, or one computed
	// by accumulating EXTINF durations from the nearest anchor (see
	// ComputeEffectivePDTs). Nil before PDT computation has run, and after
	// it for a live playlist with no anchor at all (see PDTMissing).
	PDT *time.Time
	// HasExplicitPDT is true when the source carried #EXT-X-PROGRAM-DATE-TIME
	// immediately before this segment.
	HasExplicitPDT bool
	Key            *Key
	Map            *Map
	// ExtraTags holds unrecognized tag lines immediately preceding this
	// segment's URI, preserved verbatim for round-trip.
	ExtraTags []string
}

// Key represents an encryption key for segments
type Key struct {
	Method            KeyMethod
	URI               string
	IV                string
	KeyFormat         string
	KeyFormatVersions string
	RawAttributes     string
}

// Map represents a segment map
type Map struct {
	URI           string
	ByteRange     string
	RawAttributes string
}

// DateRange represents an EXT-X-DATERANGE tag (here always of the
// interstitial class the ad-break rewriter emits).
type DateRange struct {
	ID           string
	Class        string
	StartDate    time.Time
	Duration     float64
	AssetList    string
	Restrict     string
	ResumeOffset *float64
	Snap         string
}

// Tag represents a parsed HLS tag with its attributes
type Tag struct {
	Name       string
	Value      string
	Attributes map[string]string
	RawLine    string
}

// NewPlaylist creates a new empty HLS playlist
func NewPlaylist() *Playlist {
	return &Playlist{
		Type:    PlaylistTypeUnknown,
		Version: 1,
		Master: MasterPlaylist{
			Variants:      make([]Variant, 0),
			MediaGroups:   make([]MediaGroup, 0),
			IFrameStreams: make([]IFrameStream, 0),
			SessionData:   make([]SessionData, 0),
		},
		Media: MediaPlaylist{
			Segments:   make([]Segment, 0),
			DateRanges: make([]DateRange, 0),
		},
	}
}

// IsMaster returns true if the playlist is a master playlist
func (p *Playlist) IsMaster() bool {
	return p.Type == PlaylistTypeMaster
}

// IsMedia returns true if the playlist is a media playlist
func (p *Playlist) IsMedia() bool {
	return p.Type == PlaylistTypeMedia
}

// Window returns the open time window [start, end) covered by the media
// playlist: from the first segment's PDT to the last segment's PDT plus its
// duration. ok is false when PDTs have not been computed or there are no
// segments.
func (m *MediaPlaylist) Window() (start, end time.Time, ok bool) {
	if len(m.Segments) == 0 {
		return time.Time{}, time.Time{}, false
	}
	first := m.Segments[0]
	last := m.Segments[len(m.Segments)-1]
	if first.PDT == nil || last.PDT == nil {
		return time.Time{}, time.Time{}, false
	}
	end = last.PDT.Add(durationFromSeconds(last.Duration))
	return *first.PDT, end, true
}

func durationFromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (p *Playlist) newline() string {
	if p.CRLF {
		return "\r\n"
	}
	return "\n"
}

// String serializes the playlist back to HLS text.
func (p *Playlist) String() string {
	nl := p.newline()
	var sb strings.Builder

	sb.WriteString(TagExtM3U)
	sb.WriteString(nl)
	if p.VersionPresent {
		fmt.Fprintf(&sb, "%s:%d%s", TagVersion, p.Version, nl)
	}

	if p.Type == PlaylistTypeMaster {
		p.writeMaster(&sb, nl)
	} else if p.Type == PlaylistTypeMedia {
		p.writeMedia(&sb, nl)
	}

	return sb.String()
}

func (p *Playlist) writeMaster(sb *strings.Builder, nl string) {
	m := &p.Master
	for _, raw := range m.Prelude {
		sb.WriteString(raw)
		sb.WriteString(nl)
	}
	if m.HasIndependentSegments {
		sb.WriteString(TagIndependentSegments)
		sb.WriteString(nl)
	}
	for _, sd := range m.SessionData {
		fmt.Fprintf(sb, "%s:%s%s", TagSessionData, sd.RawAttributes, nl)
	}
	for _, g := range m.MediaGroups {
		fmt.Fprintf(sb, "%s:%s%s", TagMedia, setURIAttr(g.RawAttributes, g.URI), nl)
	}
	for _, v := range m.Variants {
		fmt.Fprintf(sb, "%s:%s%s%s%s", TagStreamInf, v.RawAttributes, nl, v.URI, nl)
	}
	for _, ifr := range m.IFrameStreams {
		fmt.Fprintf(sb, "%s:%s%s", TagIFrameStreamInf, setURIAttr(ifr.RawAttributes, ifr.URI), nl)
	}
}

func (p *Playlist) writeMedia(sb *strings.Builder, nl string) {
	m := &p.Media
	for _, raw := range m.Prelude {
		sb.WriteString(raw)
		sb.WriteString(nl)
	}
	if m.HasIndependentSegments {
		sb.WriteString(TagIndependentSegments)
		sb.WriteString(nl)
	}
	fmt.Fprintf(sb, "%s:%d%s", TagTargetDuration, int(m.TargetDuration), nl)
	fmt.Fprintf(sb, "%s:%d%s", TagMediaSequence, m.MediaSequence, nl)
	if m.DiscontinuitySeqPresent {
		fmt.Fprintf(sb, "%s:%d%s", TagDiscontinuitySequence, m.DiscontinuitySeq, nl)
	}
	if m.PlaylistType != "" {
		fmt.Fprintf(sb, "%s:%s%s", TagPlaylistType, m.PlaylistType, nl)
	}
	if m.AllowCachePresent {
		v := "YES"
		if !m.AllowCache {
			v = "NO"
		}
		fmt.Fprintf(sb, "%s:%s%s", TagAllowCache, v, nl)
	}
	if m.IFramesOnly {
		sb.WriteString(TagIFramesOnly)
		sb.WriteString(nl)
	}

	dateRangesByInsertionPoint := groupDateRangesBySegment(m)

	for i, seg := range m.Segments {
		for _, dr := range dateRangesByInsertionPoint[i] {
			sb.WriteString(dr.String())
			sb.WriteString(nl)
		}
		for _, extra := range seg.ExtraTags {
			sb.WriteString(extra)
			sb.WriteString(nl)
		}
		if seg.Key != nil {
			fmt.Fprintf(sb, "%s:%s%s", TagKey, seg.Key.RawAttributes, nl)
		}
		if seg.Map != nil {
			fmt.Fprintf(sb, "%s:%s%s", TagMap, seg.Map.RawAttributes, nl)
		}
		if seg.HasExplicitPDT && seg.PDT != nil {
			fmt.Fprintf(sb, "%s:%s%s", TagProgramDateTime, FormatPDT(*seg.PDT), nl)
		}
		if seg.Discontinuity {
			sb.WriteString(TagDiscontinuity)
			sb.WriteString(nl)
		}
		if seg.ByteRange != "" {
			fmt.Fprintf(sb, "%s:%s%s", TagByteRange, seg.ByteRange, nl)
		}
		if seg.Title != "" {
			fmt.Fprintf(sb, "%s:%s,%s%s", TagInf, formatDuration(seg.Duration), seg.Title, nl)
		} else {
			fmt.Fprintf(sb, "%s:%s,%s", TagInf, formatDuration(seg.Duration), nl)
		}
		sb.WriteString(seg.URI)
		sb.WriteString(nl)
	}
	// Any date-ranges starting after the last segment's PDT are emitted
	// at the tail, immediately before ENDLIST.
	for _, dr := range dateRangesByInsertionPoint[len(m.Segments)] {
		sb.WriteString(dr.String())
		sb.WriteString(nl)
	}

	if m.EndList {
		sb.WriteString(TagEndList)
		sb.WriteString(nl)
	}
}

// groupDateRangesBySegment buckets each date-range at the index of the
// first segment whose PDT is >= the date-range's start-date; a date-range
// that starts after every segment's PDT is bucketed at len(Segments).
func groupDateRangesBySegment(m *MediaPlaylist) map[int][]DateRange {
	out := make(map[int][]DateRange, len(m.DateRanges))
	sorted := make([]DateRange, len(m.DateRanges))
	copy(sorted, m.DateRanges)
	sortDateRanges(sorted)
	for _, dr := range sorted {
		idx := len(m.Segments)
		for i, seg := range m.Segments {
			if seg.PDT != nil && !seg.PDT.Before(dr.StartDate) {
				idx = i
				break
			}
		}
		out[idx] = append(out[idx], dr)
	}
	return out
}

func sortDateRanges(drs []DateRange) {
	for i := 1; i < len(drs); i++ {
		for j := i; j > 0; j-- {
			a, b := drs[j-1], drs[j]
			if a.StartDate.After(b.StartDate) || (a.StartDate.Equal(b.StartDate) && a.ID > b.ID) {
				drs[j-1], drs[j] = drs[j], drs[j-1]
			} else {
				break
			}
		}
	}
}

// String serializes a DateRange to its #EXT-X-DATERANGE line.
func (d DateRange) String() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("%s=%q", AttrID, d.ID))
	parts = append(parts, fmt.Sprintf("%s=%q", AttrClass, d.Class))
	parts = append(parts, fmt.Sprintf("%s=%q", AttrStartDate, d.StartDate.Format("2006-01-02T15:04:05.000-07:00")))
	parts = append(parts, fmt.Sprintf("%s=%s", AttrDuration, formatDuration(d.Duration)))
	parts = append(parts, fmt.Sprintf("%s=%q", AttrAssetList, d.AssetList))
	if d.Restrict != "" {
		parts = append(parts, fmt.Sprintf("%s=%q", AttrRestrict, d.Restrict))
	}
	if d.ResumeOffset != nil {
		parts = append(parts, fmt.Sprintf("%s=%s", AttrResumeOffset, formatDuration(*d.ResumeOffset)))
	}
	if d.Snap != "" {
		parts = append(parts, fmt.Sprintf("%s=%q", AttrSnap, d.Snap))
	}
	return TagDateRange + ":" + strings.Join(parts, ",")
}

func formatDuration(d float64) string {
	return strconv.FormatFloat(d, 'f', 3, 64)
}

// FormatPDT renders t as RFC3339 with millisecond precision in t's own
// location; a UTC time renders with a "Z" suffix. DateRange.String
// renders START-DATE with a numeric offset instead, never "Z".
func FormatPDT(t time.Time) string {
	const layout = "2006-01-02T15:04:05.000Z07:00"
	return t.Format(layout)
}

// String returns a tag as a string
func (t *Tag) String() string {
	if t.Value != "" {
		return fmt.Sprintf("%s:%s", t.Name, t.Value)
	}
	return t.Name
}

// AddVariant adds a variant to a master playlist
func (p *Playlist) AddVariant(uri string, bandwidth uint64, attrs map[string]string) {
	v := Variant{
		URI:       uri,
		Bandwidth: bandwidth,
	}

	if avgBw, ok := attrs[AttrAverageBandwidth]; ok {
		if val, err := strconv.ParseUint(avgBw, 10, 64); err == nil {
			v.AverageBandwidth = val
		}
	}
	if codecs, ok := attrs[AttrCodecs]; ok {
		v.Codecs = codecs
	}
	if res, ok := attrs[AttrResolution]; ok {
		v.Resolution = res
	}
	if fr, ok := attrs[AttrFrameRate]; ok {
		if val, err := strconv.ParseFloat(fr, 64); err == nil {
			v.FrameRate = val
		}
	}
	if hdcp, ok := attrs[AttrHDCPLevel]; ok {
		v.HDCPLevel = hdcp
	}
	if audio, ok := attrs[AttrAudio]; ok {
		v.AudioGroup = audio
	}
	if video, ok := attrs[AttrVideo]; ok {
		v.VideoGroup = video
	}
	if subs, ok := attrs[AttrSubtitles]; ok {
		v.SubtitlesGroup = subs
	}
	if cc, ok := attrs[AttrClosedCaptions]; ok {
		v.ClosedCaptionsGroup = cc
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("%s=%d", AttrBandwidth, bandwidth))
	for _, k := range sortedKeys(attrs) {
		if k == AttrBandwidth {
			continue
		}
		parts = append(parts, formatAttr(k, attrs[k]))
	}
	v.RawAttributes = strings.Join(parts, ",")

	p.Master.Variants = append(p.Master.Variants, v)
	p.Type = PlaylistTypeMaster
}

// AddSegment adds a segment to a media playlist
func (p *Playlist) AddSegment(uri string, duration float64, title string) {
	p.Media.Segments = append(p.Media.Segments, Segment{
		URI:      uri,
		Duration: duration,
		Title:    title,
	})
	p.Type = PlaylistTypeMedia
}

// SetTargetDuration sets the target duration for a media playlist
func (p *Playlist) SetTargetDuration(duration float64) {
	p.Media.TargetDuration = duration
	p.Type = PlaylistTypeMedia
}

// SetEndList marks a media playlist as complete (VOD)
func (p *Playlist) SetEndList() {
	p.Media.EndList = true
	p.Type = PlaylistTypeMedia
}

// SetMediaSequence sets the media sequence number for a media playlist
func (p *Playlist) SetMediaSequence(sequence uint64) {
	p.Media.MediaSequence = sequence
	p.Type = PlaylistTypeMedia
}

// AddDateRange adds an interstitial date-range to a media playlist.
func (p *Playlist) AddDateRange(dr DateRange) {
	p.Media.DateRanges = append(p.Media.DateRanges, dr)
	p.Type = PlaylistTypeMedia
}

func quotedAttrs() map[string]bool {
	return map[string]bool{
		AttrCodecs: true, AttrResolution: true, AttrAudio: true, AttrVideo: true,
		AttrSubtitles: true, AttrClosedCaptions: true, AttrHDCPLevel: true,
		AttrURI: true, AttrGroupID: true, AttrName: true, AttrLanguage: true,
		AttrAssocLanguage: true, AttrInstreamID: true, AttrCharacteristics: true,
		AttrChannels: true, AttrDataID: true, AttrValue: true, AttrKeyFormat: true,
		AttrKeyFormatVersions: true, AttrIV: true,
	}
}

func formatAttr(k, v string) string {
	if quotedAttrs()[k] {
		return fmt.Sprintf("%s=%q", k, v)
	}
	return fmt.Sprintf("%s=%s", k, v)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
