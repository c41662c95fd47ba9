package color2svg

import (
	"bytes"
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWritePBM(t *testing.T) {
	// 10x2，第一行第 0 和第 9 个像素为黑，第二行全白
	m := image.NewGray(image.Rect(0, 0, 10, 2))
	for i := range m.Pix {
		m.Pix[i] = 255
	}
	m.Pix[0] = 0
	m.Pix[9] = 0

	var buf bytes.Buffer
	if err := writePBM(&buf, m); err != nil {
		t.Fatal(err)
	}
	want := append([]byte("P4\n10 2\n"), 0x80, 0x40, 0x00, 0x00)
	if diff := cmp.Diff(want, buf.Bytes()); diff != "" {
		t.Errorf("writePBM() mismatch (-want +got):\n%s", diff)
	}
}
