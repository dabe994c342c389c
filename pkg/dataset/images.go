package dataset

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// Image is a base64-encoded board shot, verified to be a decodable image.
type Image struct {
	Filename string // base name, without the "_test.jpg" suffix
	Base64   string
	Width    int
	Height   int
}

// EncodeImages reads every test image under root whose base name is in
// labelled, verifies that it decodes, and returns it base64-encoded.
//
// Files which cannot be read or decoded are reported in the second return
// value and skipped; only I/O errors on the directory tree abort the walk.
func EncodeImages(root string, labelled map[string]struct{}) ([]Image, []string, error) {
	images := []Image{}
	skipped := []string{}

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
			if _, ok := labelled[base]; !ok {
				continue
			}

			path := filepath.Join(imageDir, name)
			raw, err := os.ReadFile(path)
			if err != nil {
				skipped = append(skipped, path)
				continue
			}
			img, err := imaging.Decode(bytes.NewReader(raw))
			if err != nil {
				// corrupt shot. leave it out rather than feed the
				// warehouse an undecodable blob.
				skipped = append(skipped, path)
				continue
			}
			bounds := img.Bounds()
			images = append(images, Image{
				Filename: base,
				Base64:   base64.StdEncoding.EncodeToString(raw),
				Width:    bounds.Dx(),
				Height:   bounds.Dy(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("encoding images under %s: %w", root, err)
	}
	return images, skipped, nil
}

// LabelledFilenames returns the set of base filenames appearing in boxes.
func LabelledFilenames(boxes []BoundingBox) map[string]struct{} {
	names := map[string]struct{}{}
	for _, b := range boxes {
		names[b.Filename] = struct{}{}
	}
	return names
}
