package model

import (
	"errors"
	"io/fs"
	"slices"
	"testing"
)

func refs(ords ...int) []ImageReference {
	out := make([]ImageReference, len(ords))
	for i, ord := range ords {
		out[i] = ImageReference{ResolvedLocator: "http://x.test/" + string(rune('a'+ord)) + ".png", OrdinalIndex: ord}
	}
	return out
}

func TestNewSelection(t *testing.T) {
	tests := []struct {
		name string
		in   []int
		want []int
	}{
		{"empty", nil, nil},
		{"order kept", []int{2, 0, 1}, []int{2, 0, 1}},
		{"duplicates dropped", []int{2, 0, 2, 0}, []int{2, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := NewSelection(refs(tt.in...)...)
			var got []int
			for _, ref := range sel {
				got = append(got, ref.OrdinalIndex)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("NewSelection(%v) ordinals = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSelection_Locators(t *testing.T) {
	sel := NewSelection(refs(1, 0)...)
	want := []string{"http://x.test/b.png", "http://x.test/a.png"}
	if got := sel.Locators(); !slices.Equal(got, want) {
		t.Errorf("Locators() = %v, want %v", got, want)
	}
}

func TestPreviewResult_OK(t *testing.T) {
	ok := PreviewResult{Thumbnail: &Thumbnail{Width: 1, Height: 1}}
	if !ok.OK() || ok.Reason() != "" {
		t.Errorf("successful result: OK=%v Reason=%q", ok.OK(), ok.Reason())
	}

	failed := PreviewResult{Err: &PreviewError{Locator: "http://x.test/a.png", Stage: StageDecode, Err: errors.New("unknown format")}}
	if failed.OK() {
		t.Error("failed result reports OK")
	}
	if want := "preview http://x.test/a.png stage=decode: unknown format"; failed.Reason() != want {
		t.Errorf("Reason() = %q, want %q", failed.Reason(), want)
	}

	if (PreviewResult{}).OK() {
		t.Error("empty result reports OK")
	}
}

func TestDownloadOutcome_OK(t *testing.T) {
	if !(DownloadOutcome{DestinationPath: "/out/image_1.png"}).OK() {
		t.Error("saved outcome not OK")
	}
	if (DownloadOutcome{Err: &DownloadItemError{Stage: StageFetch, Err: errors.New("404")}}).OK() {
		t.Error("failed outcome reports OK")
	}
}

func TestErrors_Unwrap(t *testing.T) {
	cause := fs.ErrPermission

	tests := []struct {
		name string
		err  error
	}{
		{"fetch", &FetchError{URL: "http://x.test", Err: cause}},
		{"preview", &PreviewError{Locator: "http://x.test/a.png", Stage: StageFetch, Err: cause}},
		{"download", &DownloadItemError{Locator: "http://x.test/a.png", Stage: StageWrite, Err: cause}},
		{"validation", &ValidationError{Field: "destination", Reason: "cannot create directory", Err: cause}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, cause) {
				t.Errorf("%v does not wrap %v", tt.err, cause)
			}
		})
	}
}

func TestIsValidation(t *testing.T) {
	ve := &ValidationError{Field: "selection", Reason: "no images selected"}
	if ve.Error() != "invalid selection: no images selected" {
		t.Errorf("Error() = %q", ve.Error())
	}
	if !IsValidation(ve) {
		t.Error("IsValidation(ValidationError) = false")
	}
	if !IsValidation(errors.Join(errors.New("context"), ve)) {
		t.Error("wrapped ValidationError not detected")
	}
	if IsValidation(&FetchError{URL: "u", Err: errors.New("x")}) {
		t.Error("FetchError reported as validation")
	}
}
