// Copyright © 2025 Texelgrid contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/texelgrid-demo/main.go
// Summary: Small showcase binary for the grid/session/graphics stack.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/framegrace/texelgrid/graphics"
	"github.com/framegrace/texelgrid/grid"
	"github.com/framegrace/texelgrid/session"
	"github.com/framegrace/texelgrid/term"
)

func main() {
	backend, err := term.NewBackend()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	s := session.New(backend)
	if err := s.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer s.Deinit()

	s.HideCursor() //nolint:errcheck
	s.EnableMouse()
	s.EnableKeyboardProtocol(term.KeyboardOptions{Flags: term.KeyboardDisambiguate})
	defer s.DisableKeyboardProtocol()
	defer s.DisableMouse()

	codec := graphics.NewCodec(backend)
	kitty := graphics.DetectEnv()

	status := "arrows move the box, g draws an image, q quits"
	boxX, boxY := 4, 3
	var imageID uint32

	for {
		err := s.Draw(func(next *grid.Buffer) {
			w, h := next.Size()
			header := grid.StyleDefault.Foreground(grid.ColorBrightWhite).Background(grid.ColorBlue)
			next.Fill(grid.Rect{W: w, H: 1}, ' ', header)
			next.SetStringTruncated(1, 0, "texelgrid demo: "+status, header, w-2)

			box := grid.StyleDefault.Background(grid.ColorMagenta).Foreground(grid.ColorBrightYellow)
			next.Fill(grid.Rect{X: boxX, Y: boxY, W: 12, H: 4}, ' ', box)
			next.SetString(boxX+2, boxY+1, "texel", box.Attributes(grid.AttrBold))

			for i := 0; i < 16 && i < w; i++ {
				next.SetChar(i, h-1, ' ', grid.StyleDefault.Background(grid.ANSI16(uint8(i))))
			}
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "draw: %v\n", err)
			return
		}

		ev, err := s.PollEvent(50 * time.Millisecond)
		if err != nil {
			fmt.Fprintf(os.Stderr, "poll: %v\n", err)
			return
		}
		switch e := ev.(type) {
		case term.EventKey:
			switch {
			case e.Key == term.KeyEscape, e.Ch == 'q':
				if imageID != 0 {
					codec.DeleteImage(imageID) //nolint:errcheck
				}
				return
			case e.Key == term.KeyUp:
				boxY--
			case e.Key == term.KeyDown:
				boxY++
			case e.Key == term.KeyLeft:
				boxX--
			case e.Key == term.KeyRight:
				boxX++
			case e.Ch == 'g':
				if !kitty {
					status = "no graphics-capable terminal detected"
					break
				}
				img := gradient(96, 48)
				id, gerr := codec.DrawAt(img, 24, 8, graphics.Placement{})
				if gerr != nil {
					status = gerr.Error()
					break
				}
				imageID = id
				status = fmt.Sprintf("placed image %d", id)
			}
		case term.EventMouse:
			if e.Action == term.MousePress && e.Button == term.MouseLeft {
				boxX, boxY = e.X, e.Y
			}
		case term.EventResize:
			s.Resize(e.Width, e.Height)
		}
	}
}

func gradient(w, h int) graphics.Image {
	data := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			data[i] = byte(255 * x / w)
			data[i+1] = byte(255 * y / h)
			data[i+2] = 160
			data[i+3] = 255
		}
	}
	return graphics.Image{Data: data, Format: graphics.FormatRGBA, Width: w, Height: h}
}
