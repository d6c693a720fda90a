package motion

import (
	"image"
	"sort"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"argus-worker-go/internal/config"
	"argus-worker-go/internal/models"
)

// Analyzer turns raw frames into FrameDeltas: a motion percentage, tracked
// motion blobs and their lifecycle events. One Analyzer serves one capture
// loop; it is not safe for concurrent use.
type Analyzer struct {
	cfg     *config.Config
	tracker *BlobTracker

	prev    gocv.Mat
	hasPrev bool
	mog2    gocv.BackgroundSubtractorMOG2
	useMOG2 bool
	kernel  gocv.Mat

	frameNum int64
}

// NewAnalyzer creates a motion analyzer with its own blob tracker
func NewAnalyzer(cfg *config.Config) *Analyzer {
	a := &Analyzer{
		cfg: cfg,
		tracker: NewBlobTracker(
			cfg.BlobMatchMaxCost,
			cfg.BlobGraceFrames,
			cfg.EdgeMargin,
			cfg.BlobMinVelocity,
			cfg.BlobVelocityHistory,
		),
		kernel:  gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3)),
		useMOG2: cfg.UseBackgroundSub,
	}
	if a.useMOG2 {
		a.mog2 = gocv.NewBackgroundSubtractorMOG2()
	}
	return a
}

// Close releases OpenCV resources
func (a *Analyzer) Close() {
	if a.hasPrev {
		a.prev.Close()
		a.hasPrev = false
	}
	if a.useMOG2 {
		a.mog2.Close()
	}
	a.kernel.Close()
}

// Reset drops the background model and blob state, used after reconnects
func (a *Analyzer) Reset() {
	if a.hasPrev {
		a.prev.Close()
		a.hasPrev = false
	}
	if a.useMOG2 {
		a.mog2.Close()
		a.mog2 = gocv.NewBackgroundSubtractorMOG2()
	}
	a.tracker.Reset()
}

// ActiveBlobs returns how many blobs the tracker currently follows
func (a *Analyzer) ActiveBlobs() int {
	return a.tracker.ActiveCount()
}

// Analyze computes the FrameDelta for one frame. Decode failures never
// propagate: the frame is reported at the configured error percentage with
// no blobs so the pipeline keeps a usable signal.
func (a *Analyzer) Analyze(frame *models.Frame) *models.FrameDelta {
	a.frameNum++
	delta := &models.FrameDelta{
		CameraID:  frame.CameraID,
		FrameNum:  a.frameNum,
		Timestamp: frame.Timestamp,
	}

	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data)
	if err != nil || mat.Empty() {
		if err == nil {
			mat.Close()
		}
		log.Warn().
			Str("camera_id", frame.CameraID).
			Int64("frame_num", a.frameNum).
			Err(err).
			Msg("Undecodable frame, reporting fallback motion level")
		delta.MotionPct = a.cfg.MotionErrorPct
		return delta
	}
	defer mat.Close()

	blurred := gocv.NewMat()
	gray := gocv.NewMat()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)
	gocv.GaussianBlur(gray, &blurred, image.Pt(a.cfg.MotionBlurKernel, a.cfg.MotionBlurKernel), 0, 0, gocv.BorderDefault)
	gray.Close()

	if !a.hasPrev {
		// Nothing to diff against yet; everything counts as changed
		a.prev = blurred
		a.hasPrev = true
		delta.MotionPct = a.cfg.MotionFirstFramePct
		return delta
	}

	mask := gocv.NewMat()
	defer mask.Close()

	if a.useMOG2 {
		a.mog2.Apply(blurred, &mask)
		a.prev.Close()
		a.prev = blurred
	} else {
		diff := gocv.NewMat()
		gocv.AbsDiff(a.prev, blurred, &diff)
		gocv.Threshold(diff, &mask, float32(a.cfg.MotionDiffThreshold), 255, gocv.ThresholdBinary)
		diff.Close()
		a.prev.Close()
		a.prev = blurred
	}

	for i := 0; i < a.cfg.MotionDilateIter; i++ {
		gocv.Dilate(mask, &mask, a.kernel)
	}

	totalPx := frame.Width * frame.Height
	motionPx := gocv.CountNonZero(mask)
	delta.MotionPct = float64(motionPx) / float64(totalPx) * 100

	// A near-global change is the camera moving, not objects in the scene.
	// Report the level but keep the blob state frozen.
	if delta.MotionPct >= a.cfg.CameraMotionPct {
		delta.CameraMotion = true
		log.Debug().
			Str("camera_id", frame.CameraID).
			Float64("motion_pct", delta.MotionPct).
			Msg("Camera motion detected, suppressing blobs")
		return delta
	}

	raw := a.extractBlobs(mask, frame.Width, frame.Height)
	delta.Blobs, delta.Events = a.tracker.Update(raw, frame.Timestamp)
	return delta
}

// extractBlobs finds contours in the motion mask and converts them to
// normalized, merged, size-capped blobs
func (a *Analyzer) extractBlobs(mask gocv.Mat, width, height int) []models.MotionBlob {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var rects []image.Rectangle
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		if gocv.ContourArea(c) < a.cfg.MotionMinContourArea {
			continue
		}
		rects = append(rects, gocv.BoundingRect(c))
	}

	rects = mergeRects(rects, a.cfg.MotionMergeGap)

	sort.Slice(rects, func(i, j int) bool {
		return rectArea(rects[i]) > rectArea(rects[j])
	})
	if len(rects) > a.cfg.MotionMaxBlobs {
		rects = rects[:a.cfg.MotionMaxBlobs]
	}

	blobs := make([]models.MotionBlob, 0, len(rects))
	fw, fh := float64(width), float64(height)
	for _, r := range rects {
		blobs = append(blobs, models.MotionBlob{
			X:      float64(r.Min.X) / fw,
			Y:      float64(r.Min.Y) / fh,
			W:      float64(r.Dx()) / fw,
			H:      float64(r.Dy()) / fh,
			AreaPx: float64(rectArea(r)),
		})
	}
	return blobs
}

func rectArea(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}
