package view

import (
	"fmt"
	"html/template"

	"github.com/kapu/spotmyartist/internal/constants"
	"github.com/kapu/spotmyartist/internal/domain"
	"github.com/kapu/spotmyartist/internal/service/mapview"
	"github.com/kapu/spotmyartist/internal/util"
)

type MarkerStyle struct {
	Radius  int    `json:"radius"`
	Fill    string `json:"fillColor"`
	Outline string `json:"color"`
}

type MapMarker struct {
	Lat    float64       `json:"lat"`
	Lng    float64       `json:"lng"`
	Title  string        `json:"title"`
	Source string        `json:"source"`
	Popup  template.HTML `json:"popup"`
}

// MapView tells the page how to draw a map. When Fit is set the page fits
// Bounds with Padding; otherwise it centers on Center at Zoom.
type MapView struct {
	Title   string            `json:"title"`
	Center  domain.Coordinate `json:"center"`
	Zoom    int               `json:"zoom,omitempty"`
	Fit     bool              `json:"fit"`
	Bounds  *domain.Bounds    `json:"bounds,omitempty"`
	Padding int               `json:"padding"`
	Style   MarkerStyle       `json:"style"`
	Markers []MapMarker       `json:"markers"`
	Failed  []string          `json:"failed"`
	Summary string            `json:"summary"`
}

type popupData struct {
	Title   string
	Artists []string
	Dates   []string
}

// Map builds the map model from a builder result. A popup that fails to render
// falls back to its escaped title.
func Map(title string, res mapview.Result) MapView {
	view := MapView{
		Title:   title,
		Center:  res.Center,
		Zoom:    res.Zoom,
		Fit:     res.Bounds != nil,
		Bounds:  res.Bounds,
		Padding: constants.MapConfig.FitPadding,
		Style: MarkerStyle{
			Radius:  constants.MapConfig.MarkerRadius,
			Fill:    constants.MapConfig.MarkerFill,
			Outline: constants.MapConfig.MarkerOutline,
		},
		Markers: make([]MapMarker, 0, len(res.Markers)),
		Failed:  res.Failed,
	}
	if view.Failed == nil {
		view.Failed = []string{}
	}

	for _, m := range res.Markers {
		markerTitle := util.FormatCityName(m.Place)
		dates := make([]string, 0, len(m.Dates))
		for _, d := range m.Dates {
			dates = append(dates, util.FormatConcertDate(d))
		}

		popup, err := executeViewTemplate("marker_popup.tmpl", popupData{
			Title:   markerTitle,
			Artists: m.Artists,
			Dates:   dates,
		})
		if err != nil {
			popup = template.HTML(template.HTMLEscapeString(markerTitle))
		}

		view.Markers = append(view.Markers, MapMarker{
			Lat:    m.Coordinate.Lat,
			Lng:    m.Coordinate.Lng,
			Title:  markerTitle,
			Source: string(m.Source),
			Popup:  popup,
		})
	}

	total := len(res.Markers) + len(res.Failed)
	view.Summary = fmt.Sprintf("%d/%d places shown", len(res.Markers), total)
	return view
}
