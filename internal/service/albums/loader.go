package albums

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/kapu/spotmyartist/internal/domain"
	"go.uber.org/zap"
)

type albumsFile struct {
	Albums []domain.AlbumImage `json:"albums"`
}

// Loader serves the carousel images from a JSON file. The file is read once;
// a missing or invalid file yields an empty list and is retried on the next call.
type Loader struct {
	path   string
	logger *zap.Logger

	mu     sync.Mutex
	images []domain.AlbumImage
}

func NewLoader(path string, logger *zap.Logger) *Loader {
	return &Loader{path: path, logger: logger}
}

func (l *Loader) Images() []domain.AlbumImage {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.images != nil {
		return l.images
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		l.logger.Warn("Album images unavailable", zap.String("path", l.path), zap.Error(err))
		return []domain.AlbumImage{}
	}

	var f albumsFile
	if err := json.Unmarshal(data, &f); err != nil {
		l.logger.Warn("Album images file is invalid", zap.String("path", l.path), zap.Error(err))
		return []domain.AlbumImage{}
	}
	if f.Albums == nil {
		f.Albums = []domain.AlbumImage{}
	}

	l.images = f.Albums
	l.logger.Info("Album images loaded", zap.Int("count", len(f.Albums)))
	return l.images
}
