// Package vast implements the subset of the IAB VAST 3.0 document model
// (http://www.iab.net/media/file/VASTv3.0.pdf) needed to resolve an ad
// break into a playable asset list: in-line linear creatives, their media
// files, and their quartile tracking URLs. Wrapper chains, companion ads
// and non-linear ads are out of scope for server-guided insertion and are
// intentionally left unmodeled.
package vast

import "encoding/xml"

// VAST is the root <VAST> tag.
type VAST struct {
	Version string `xml:"version,attr"`
	Ads     []*Ad  `xml:"Ad"`
	Errors  []string `xml:"Error"`
}

// Ad is a single <Ad> child of <VAST>. Only the InLine case is modeled;
// a <Wrapper> ad (redirecting to a further ad server) has no creatives of
// its own to select and is skipped by the resolver.
type Ad struct {
	ID       string  `xml:"id,attr"`
	Sequence int     `xml:"sequence,attr"`
	InLine   *InLine `xml:"InLine"`
}

// InLine carries the actual creative definition.
type InLine struct {
	AdSystem    string        `xml:"AdSystem"`
	AdTitle     string        `xml:"AdTitle"`
	Impressions []string      `xml:"Impression"`
	Creatives   []*Creative   `xml:"Creatives>Creative"`
	Errors      []string      `xml:"Error"`
}

// Creative is a file that is part of a VAST ad. Only Linear creatives
// carry playable media; CompanionAds/NonLinearAds are not relevant to
// HLS interstitial playback and are dropped.
type Creative struct {
	ID       string  `xml:"id,attr"`
	Sequence int     `xml:"sequence,attr"`
	AdID     string  `xml:"AdID,attr"`
	Linear   *Linear `xml:"Linear"`
}

// Linear is a pre-roll/mid-roll style linear video ad.
type Linear struct {
	Duration       *Duration   `xml:"Duration"`
	TrackingEvents []*Tracking `xml:"TrackingEvents>Tracking"`
	MediaFiles     []*MediaFile `xml:"MediaFiles>MediaFile"`
}

// Tracking is a single quartile (or other) event tracking URL.
//
// Possible Event values per spec: creativeView, start, firstQuartile,
// midpoint, thirdQuartile, complete, and several player-interaction
// events not relevant to server-guided signaling.
type Tracking struct {
	Event string `xml:"event,attr"`
	URI   string `xml:",chardata"`
}

// MediaFile references a linear creative asset: the actual playable URI,
// its delivery method and MIME type.
type MediaFile struct {
	ID           string `xml:"id,attr"`
	Delivery     string `xml:"delivery,attr"`
	Type         string `xml:"type,attr"`
	Width        int    `xml:"width,attr"`
	Height       int    `xml:"height,attr"`
	Bitrate      int    `xml:"bitrate,attr"`
	APIFramework string `xml:"apiFramework,attr"`
	URI          string `xml:",chardata"`
}

// Duration is a VAST <Duration> element in HH:MM:SS.mmm format. It
// implements xml.Unmarshaler directly since the textual layout needs
// parsing the stdlib encoding/xml chardata tag cannot do on its own.
type Duration struct {
	Seconds float64
}

func (d *Duration) UnmarshalXML(dec *xml.Decoder, start xml.StartElement) error {
	var text string
	if err := dec.DecodeElement(&text, &start); err != nil {
		return err
	}
	secs, err := parseClock(text)
	if err != nil {
		return err
	}
	d.Seconds = secs
	return nil
}
