package torrents

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"

	"coho/internal/config"
	"coho/internal/logging"
	"coho/internal/services"
)

// Descriptor is a written torrent file plus the fields the injection step
// needs.
type Descriptor struct {
	Path        string
	InfoHash    string
	PayloadDir  string
	Destination string
}

// Packager produces private torrent descriptors under the configured
// torrent directory.
type Packager struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewPackager constructs a Packager.
func NewPackager(cfg *config.Config, logger *slog.Logger) *Packager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Packager{cfg: cfg, logger: logger.With(logging.String(logging.FieldComponent, "torrents"))}
}

// Package builds the descriptor for one payload folder aimed at one
// destination. The torrent is always private and carries the
// destination's source tag.
func (p *Packager) Package(dest config.Destination, payloadDir string) (*Descriptor, error) {
	stat, err := os.Stat(payloadDir)
	if err != nil || !stat.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "torrents", "package", "payload folder missing: "+payloadDir, err)
	}
	if dest.Announce == "" {
		return nil, services.Wrap(services.ErrConfiguration, "torrents", "package", "destination "+dest.Name+" has no announce URL", nil)
	}

	size, err := payloadSize(payloadDir)
	if err != nil {
		return nil, fmt.Errorf("measure payload: %w", err)
	}

	info := metainfo.Info{PieceLength: pieceLength(size)}
	if err := info.BuildFromFilePath(payloadDir); err != nil {
		return nil, services.Wrap(services.ErrValidation, "torrents", "package", "hash payload", err)
	}
	private := true
	info.Private = &private
	info.Source = dest.SourceTag

	infoBytes, err := bencode.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("encode info dict: %w", err)
	}
	mi := metainfo.MetaInfo{
		InfoBytes:    infoBytes,
		Announce:     dest.Announce,
		CreationDate: time.Now().Unix(),
	}

	if err := os.MkdirAll(p.cfg.Paths.TorrentDir, 0o755); err != nil {
		return nil, fmt.Errorf("create torrent dir: %w", err)
	}
	name := fmt.Sprintf("%s [%s].torrent", filepath.Base(payloadDir), dest.Name)
	outPath := filepath.Join(p.cfg.Paths.TorrentDir, name)
	f, err := os.Create(outPath)
	if err != nil {
		return nil, fmt.Errorf("create descriptor: %w", err)
	}
	if err := mi.Write(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write descriptor: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close descriptor: %w", err)
	}

	descriptor := &Descriptor{
		Path:        outPath,
		InfoHash:    mi.HashInfoBytes().HexString(),
		PayloadDir:  payloadDir,
		Destination: dest.Name,
	}
	p.logger.Info("descriptor written",
		logging.String(logging.FieldDestination, dest.Name),
		logging.String("infohash", descriptor.InfoHash),
		logging.String("path", outPath))
	return descriptor, nil
}

// pieceLength scales with payload size so descriptors stay small without
// fragmenting large releases.
func pieceLength(size int64) int64 {
	switch {
	case size <= 128<<20:
		return 64 << 10
	case size <= 512<<20:
		return 256 << 10
	case size <= 1<<30:
		return 512 << 10
	case size <= 4<<30:
		return 1 << 20
	default:
		return 2 << 20
	}
}

func payloadSize(dir string) (int64, error) {
	var size int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size += info.Size()
		return nil
	})
	return size, err
}
