package compare

import (
	"fmt"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"
)

// CompareImages hashes both frames and reports whether their Hamming distance is within
// the threshold. Any failure yields (false, FailedDistance).
func (c *Comparator) CompareImages(a, b string) (bool, int) {
	distance, err := c.imageDistance(a, b)
	if err != nil {
		c.log.Warnf("Error comparing images: %v", err)
		return false, FailedDistance
	}
	return distance <= c.cfg.ImageHashThreshold, distance
}

func (c *Comparator) imageDistance(a, b string) (int, error) {
	ha, err := c.hashImage(a)
	if err != nil {
		return 0, err
	}
	hb, err := c.hashImage(b)
	if err != nil {
		return 0, err
	}
	return ha.Distance(hb)
}

// hashImage normalises resolution and colour before computing the DCT perceptual hash.
func (c *Comparator) hashImage(path string) (*goimagehash.ImageHash, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	img = imaging.Resize(img, c.cfg.ImageSize, c.cfg.ImageSize, imaging.Lanczos)
	img = imaging.Grayscale(img)

	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return nil, fmt.Errorf("hash %s: %w", path, err)
	}
	return hash, nil
}
