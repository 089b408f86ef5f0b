package chart

import (
	"nse-screener/candles"
	"nse-screener/format"
	"nse-screener/models"
)

// Colours follow the terminal's dark theme.
const (
	ColorUp        = "#00e676"
	ColorDown      = "#ff4d6d"
	ColorWickUp    = "rgba(0,230,118,0.6)"
	ColorWickDown  = "rgba(255,77,109,0.6)"
	ColorVolUp     = "rgba(0,230,118,0.4)"
	ColorVolDown   = "rgba(255,77,109,0.4)"
	ColorMA        = "rgba(255,224,75,0.65)"
	ColorGrid      = "rgba(255,255,255,0.06)"
	ColorAxisText  = "rgba(255,255,255,0.35)"
	ColorDateText  = "rgba(255,255,255,0.3)"
	ColorVolLabel  = "rgba(255,255,255,0.25)"
	UnavailableMsg = "Chart data unavailable for this symbol"

	gridDivisions = 4
	fontSize      = 9
	volFontSize   = 8
	maStrokeWidth = 1.5
)

// Kind names a draw primitive.
type Kind string

const (
	KindRect     Kind = "rect"
	KindLine     Kind = "line"
	KindPolyline Kind = "polyline"
	KindText     Kind = "text"
)

// Point is a vertex of a polyline.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Command is one draw call. Which fields are meaningful depends on Kind:
// rect uses X, Y, W, H and Fill; line uses X1..Y2 and Stroke; polyline uses
// Points and Stroke; text uses X, Y, Text, Fill, Anchor and FontSize.
type Command struct {
	Kind        Kind    `json:"kind"`
	X           float64 `json:"x,omitempty"`
	Y           float64 `json:"y,omitempty"`
	W           float64 `json:"w,omitempty"`
	H           float64 `json:"h,omitempty"`
	X1          float64 `json:"x1,omitempty"`
	Y1          float64 `json:"y1,omitempty"`
	X2          float64 `json:"x2,omitempty"`
	Y2          float64 `json:"y2,omitempty"`
	Points      []Point `json:"points,omitempty"`
	Text        string  `json:"text,omitempty"`
	Anchor      string  `json:"anchor,omitempty"` // start, middle
	FontSize    float64 `json:"font_size,omitempty"`
	Fill        string  `json:"fill,omitempty"`
	Stroke      string  `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"stroke_width,omitempty"`
}

func rect(x, y, w, h float64, fill string) Command {
	return Command{Kind: KindRect, X: x, Y: y, W: w, H: h, Fill: fill}
}

func line(x1, y1, x2, y2 float64, stroke string, width float64) Command {
	return Command{Kind: KindLine, X1: x1, Y1: y1, X2: x2, Y2: y2, Stroke: stroke, StrokeWidth: width}
}

func text(x, y float64, s, anchor string, size float64, fill string) Command {
	return Command{Kind: KindText, X: x, Y: y, Text: s, Anchor: anchor, FontSize: size, Fill: fill}
}

// Scene is the full drawing for one chart session. When Available is false
// the panels are empty and Message explains why.
type Scene struct {
	Available    bool      `json:"available"`
	Message      string    `json:"message,omitempty"`
	Status       string    `json:"status,omitempty"`
	Width        float64   `json:"width"`
	PriceHeight  float64   `json:"price_height"`
	VolumeHeight float64   `json:"volume_height"`
	Price        []Command `json:"price"`
	Volume       []Command `json:"volume"`
}

// Unavailable is the scene drawn when there is nothing to chart.
func Unavailable(width int) Scene {
	l := NewLayout(nil, width)
	return Scene{
		Message:      UnavailableMsg,
		Width:        l.Width,
		PriceHeight:  l.Height,
		VolumeHeight: l.VolHeight,
	}
}

// Render builds both panels for points. It is a pure function of its inputs:
// the same sequence and width always produce the same commands. Sequences
// shorter than candles.MinPoints yield the unavailable scene.
func Render(points []models.CandlePoint, width int) Scene {
	if len(points) < candles.MinPoints {
		return Unavailable(width)
	}
	l := NewLayout(points, width)
	return Scene{
		Available:    true,
		Status:       candles.Status(points),
		Width:        l.Width,
		PriceHeight:  l.Height,
		VolumeHeight: l.VolHeight,
		Price:        pricePanel(l, points),
		Volume:       volumePanel(l, points),
	}
}

func pricePanel(l Layout, points []models.CandlePoint) []Command {
	cmds := make([]Command, 0, 2*(gridDivisions+1)+2*len(points)+8)

	for g := 0; g <= gridDivisions; g++ {
		y := l.GridY(g)
		cmds = append(cmds,
			line(l.Pad.Left, y, l.Width-l.Pad.Right, y, ColorGrid, 1),
			text(l.Width-l.Pad.Right+4, y+4, format.INR(l.GridPrice(g), 0), "start", fontSize, ColorAxisText),
		)
	}

	if ma := SMA(points, MAWindow); len(ma) > 0 {
		pts := make([]Point, len(ma))
		for i, m := range ma {
			pts[i] = Point{X: l.IndexToX(m.Index), Y: l.PriceToY(m.Value)}
		}
		cmds = append(cmds, Command{Kind: KindPolyline, Points: pts, Stroke: ColorMA, StrokeWidth: maStrokeWidth})
	}

	bw := l.BodyWidth()
	for i, p := range points {
		x := l.IndexToX(i)
		fill, wick := ColorUp, ColorWickUp
		if !p.Up() {
			fill, wick = ColorDown, ColorWickDown
		}
		yo, yc := l.PriceToY(p.Open), l.PriceToY(p.Close)
		h := max(1, abs(yo-yc))
		cmds = append(cmds,
			line(x, l.PriceToY(p.High), x, l.PriceToY(p.Low), wick, 1),
			rect(x-bw/2, min(yo, yc), bw, h, fill),
		)
	}

	for i := 0; i < len(points); i += l.LabelStride() {
		cmds = append(cmds, text(l.IndexToX(i), l.Height-l.Pad.Bottom+14, format.AxisDate(points[i].Date), "middle", fontSize, ColorDateText))
	}
	return cmds
}

func volumePanel(l Layout, points []models.CandlePoint) []Command {
	var maxVol int64
	for _, p := range points {
		maxVol = max(maxVol, p.Volume)
	}

	cmds := make([]Command, 0, len(points)+1)
	if maxVol > 0 {
		bw := l.BodyWidth()
		for i, p := range points {
			if p.Volume <= 0 {
				continue
			}
			bh := float64(p.Volume) / float64(maxVol) * (l.VolHeight - 8)
			fill := ColorVolUp
			if !p.Up() {
				fill = ColorVolDown
			}
			cmds = append(cmds, rect(l.IndexToX(i)-bw/2, l.VolHeight-6-bh, bw, bh, fill))
		}
	}
	return append(cmds, text(4, l.VolHeight-2, "VOL", "start", volFontSize, ColorVolLabel))
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
