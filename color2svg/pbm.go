package color2svg

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"os"
)

// writePBM 写二进制 PBM (P4)，灰度小于 128 记为 1（黑）
func writePBM(w io.Writer, mask *image.Gray) error {
	b := mask.Bounds()
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "P4\n%d %d\n", b.Dx(), b.Dy()); err != nil {
		return err
	}

	row := make([]byte, (b.Dx()+7)/8)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		clear(row)
		for x := b.Min.X; x < b.Max.X; x++ {
			if mask.GrayAt(x, y).Y < 128 {
				i := x - b.Min.X
				row[i/8] |= 0x80 >> (i % 8)
			}
		}
		if _, err := bw.Write(row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writePBMFile(path string, mask *image.Gray) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writePBM(f, mask); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
