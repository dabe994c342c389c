package dataset

import (
	"math"
	"math/rand"
)

// Record is a bounding box joined with the base64 image it belongs to.
type Record struct {
	Filename  string
	XMin      float64
	YMin      float64
	XMax      float64
	YMax      float64
	Class     int
	ImageData string
}

// Merge inner-joins bounding boxes with encoded images on filename.
//
// Boxes without an image (and images without a box) are dropped.
// The order of boxes is kept.
func Merge(boxes []BoundingBox, images []Image) []Record {
	byName := map[string]Image{}
	for _, img := range images {
		byName[img.Filename] = img
	}

	records := []Record{}
	for _, b := range boxes {
		img, ok := byName[b.Filename]
		if !ok {
			continue
		}
		records = append(records, Record{
			Filename: b.Filename,
			XMin:     b.XMin, YMin: b.YMin, XMax: b.XMax, YMax: b.YMax,
			Class:     b.Class,
			ImageData: img.Base64,
		})
	}
	return records
}

// DefaultSeed keeps splits reproducible between runs.
const DefaultSeed int64 = 42

// Split shuffles records with the given seed and cuts off testFraction of
// them (rounded up) as the test set.
//
// The same (records, testFraction, seed) triple always yields the same
// split. Inputs are not modified.
func Split(records []Record, testFraction float64, seed int64) (train []Record, test []Record) {
	shuffled := make([]Record, len(records))
	copy(shuffled, records)

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	nTest := int(math.Ceil(float64(len(shuffled)) * testFraction))
	if nTest > len(shuffled) {
		nTest = len(shuffled)
	}

	return shuffled[nTest:], shuffled[:nTest]
}
