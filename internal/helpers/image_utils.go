package helpers

import (
	"fmt"
	"image"
	"math/bits"

	"gocv.io/x/gocv"

	"argus-worker-go/internal/models"
)

// IsJPEGData checks if the byte slice contains JPEG data by checking magic bytes
func IsJPEGData(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	// JPEG magic bytes: FF D8
	return data[0] == 0xFF && data[1] == 0xD8
}

// EncodeJPEG converts a BGR frame to JPEG at the given quality.
// Frames that already carry JPEG data pass through untouched.
func EncodeJPEG(frame *models.Frame, quality int) ([]byte, error) {
	if len(frame.Data) == 0 {
		return nil, fmt.Errorf("empty frame data")
	}
	if IsJPEGData(frame.Data) {
		return frame.Data, nil
	}

	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create Mat from BGR data: %w", err)
	}
	defer mat.Close()

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode BGR as JPEG: %w", err)
	}
	defer buf.Close()

	// Copy out: the IMEncode buffer is freed on Close
	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}

// DHash computes a 64-bit difference hash of the frame: grayscale, shrink
// to 9x8, compare horizontal neighbors. Visually similar frames land within
// a few bits of each other, which is what the description cache keys on.
func DHash(frame *models.Frame) (uint64, error) {
	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data)
	if err != nil {
		return 0, fmt.Errorf("failed to create Mat for hashing: %w", err)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(gray, &small, image.Pt(9, 8), 0, 0, gocv.InterpolationArea)

	pixels := small.ToBytes()
	if len(pixels) < 72 {
		return 0, fmt.Errorf("unexpected hash plane size %d", len(pixels))
	}

	var hash uint64
	bit := 0
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			if pixels[row*9+col] > pixels[row*9+col+1] {
				hash |= 1 << uint(bit)
			}
			bit++
		}
	}
	return hash, nil
}

// HammingDistance counts differing bits between two hashes
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
