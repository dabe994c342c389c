package dataset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// BoundingBox is one labelled defect on a board image.
//
// Coordinates are pixel positions on the test image; Class is the defect
// class id (0: open, 1: short, 2: mousebite, 3: spur, 4: copper, 5: pin-hole).
type BoundingBox struct {
	Filename string
	XMin     float64
	YMin     float64
	XMax     float64
	YMax     float64
	Class    int
}

// suffix of annotated board shots in the DeepPCB tree.
const testImageSuffix = "_test.jpg"

// ParseLabels reads a DeepPCB annotation file.
//
// Each line is 5 whitespace-separated fields: xmin ymin xmax ymax class.
// Lines with any other shape are skipped silently, matching the dataset's
// published loaders.
func ParseLabels(r io.Reader, filename string) ([]BoundingBox, error) {
	boxes := []BoundingBox{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		parts := strings.Fields(sc.Text())
		if len(parts) != 5 {
			continue
		}
		coord := [4]float64{}
		ok := true
		for i := 0; i < 4; i++ {
			c, err := strconv.ParseFloat(parts[i], 64)
			if err != nil {
				ok = false
				break
			}
			coord[i] = c
		}
		class, err := strconv.Atoi(parts[4])
		if err != nil || !ok {
			continue
		}
		boxes = append(boxes, BoundingBox{
			Filename: filename,
			XMin:     coord[0], YMin: coord[1],
			XMax: coord[2], YMax: coord[3],
			Class: class,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading labels of %s: %w", filename, err)
	}
	return boxes, nil
}

// CollectLabels walks the DeepPCB directory layout,
//
//	<root>/groupNNNNN/NNNNN/*_test.jpg      (images)
//	<root>/groupNNNNN/NNNNN_not/NNNNN*.txt  (annotations)
//
// and parses every annotation file which has a corresponding test image.
//
// It returns the parsed bounding boxes and the number of annotation files
// they came from. Filenames in the result are the base names without the
// "_test.jpg" suffix.
func CollectLabels(root string) ([]BoundingBox, int, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, 0, fmt.Errorf("data directory is not found: %w", err)
	}

	labels := []BoundingBox{}
	files := 0

	err := walkImageDirs(root, func(imageDir, labelDir string) error {
		entries, err := os.ReadDir(imageDir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.HasSuffix(name, testImageSuffix) {
				continue
			}
			base := strings.TrimSuffix(name, testImageSuffix)
			txt := filepath.Join(labelDir, base+".txt")
			f, err := os.Open(txt)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return err
			}
			boxes, perr := ParseLabels(f, base)
			f.Close()
			if perr != nil {
				return perr
			}
			labels = append(labels, boxes...)
			files += 1
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return labels, files, nil
}

// walkImageDirs calls fn for each (imageDir, labelDir) pair found under root.
//
// A pair is a subdirectory and its sibling with the "_not" suffix; pairs
// without the sibling are skipped. Directories are visited in lexical order
// so that results are deterministic.
func walkImageDirs(root string, fn func(imageDir string, labelDir string) error) error {
	groups, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name() < groups[j].Name() })

	for _, g := range groups {
		if !g.IsDir() {
			continue
		}
		groupPath := filepath.Join(root, g.Name())
		subs, err := os.ReadDir(groupPath)
		if err != nil {
			return err
		}
		sort.Slice(subs, func(i, j int) bool { return subs[i].Name() < subs[j].Name() })

		for _, s := range subs {
			if !s.IsDir() || strings.HasSuffix(s.Name(), "_not") {
				continue
			}
			imageDir := filepath.Join(groupPath, s.Name())
			labelDir := filepath.Join(groupPath, s.Name()+"_not")
			if st, err := os.Stat(labelDir); err != nil || !st.IsDir() {
				continue
			}
			if err := fn(imageDir, labelDir); err != nil {
				return err
			}
		}
	}
	return nil
}
