// Copyright ©2025 The zoetrope authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stills

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestName(t *testing.T) {
	for _, test := range []struct {
		index int
		want  string
	}{
		{index: 0, want: "00000.png"},
		{index: 7, want: "00007.png"},
		{index: 123, want: "00123.png"},
		{index: 99999, want: "99999.png"},
	} {
		if got := Name(test.index); got != test.want {
			t.Errorf("unexpected name for %d: got %q, want %q", test.index, got, test.want)
		}
	}
}

func TestSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	s, err := NewSink(dir, 4, nil)
	if err != nil {
		t.Fatal(err)
	}
	const frames = 20
	ctx := context.Background()
	for i := 0; i < frames; i++ {
		img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
		img.SetNRGBA(0, 0, color.NRGBA{R: uint8(i), A: 0xff})
		err = s.Put(ctx, i, img)
		if err != nil {
			t.Fatal(err)
		}
	}
	err = s.Close()
	if err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("temporary file left behind: %s", e.Name())
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) != frames {
		t.Fatalf("unexpected artifact count: got %d, want %d", len(names), frames)
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("artifact names not in lexicographic frame order: %v", names)
	}
	want := make([]string, frames)
	for i := range want {
		want[i] = Name(i)
	}
	if !cmp.Equal(names, want) {
		t.Errorf("unexpected artifact names:\n%s", cmp.Diff(want, names))
	}

	f, err := os.Open(filepath.Join(dir, Name(7)))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if got := img.(*image.NRGBA).NRGBAAt(0, 0); got != (color.NRGBA{R: 7, A: 0xff}) {
		t.Errorf("unexpected pixel in artifact 7: got %v", got)
	}
}

func TestSinkWriteFailure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	s, err := NewSink(dir, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	// Remove the destination so writes cannot be materialized.
	err = os.RemoveAll(dir)
	if err != nil {
		t.Fatal(err)
	}
	err = s.Put(context.Background(), 0, image.NewNRGBA(image.Rect(0, 0, 1, 1)))
	if err != nil {
		t.Fatal(err)
	}
	err = s.Close()
	if err == nil {
		t.Fatal("expected error writing to removed directory")
	}
	if !strings.Contains(err.Error(), "frame 0") {
		t.Errorf("error does not identify frame: %v", err)
	}
}

func TestSinkPutCancelled(t *testing.T) {
	s, err := NewSink(t.TempDir(), 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// A cancelled Put may still succeed if a worker is idle; loop
	// until the queue is contended so the context path is taken.
	for {
		err = s.Put(ctx, 0, image.NewNRGBA(image.Rect(0, 0, 1, 1)))
		if err != nil {
			break
		}
	}
	if err != context.Canceled {
		t.Errorf("unexpected error: got %v, want %v", err, context.Canceled)
	}
}
