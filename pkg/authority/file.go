package authority

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// FileAuthority loads the neighbour set from a local INI-style file,
// optionally reloading it on a fixed interval. A missing file is
// treated as an empty neighbour set rather than an error, matching the
// upstream's "no file -> no neighbours defined" behaviour.
type FileAuthority struct {
	path   string
	reload time.Duration // 0 means load once, never reload

	updateCb UpdateFunc
	log      zerolog.Logger
	stop     chan struct{}
}

// NewFile builds a FileAuthority from cfg. cfg.ReloadSeconds == 0 means
// the file is loaded exactly once at Start and never reloaded.
func NewFile(cfg Config, updateCb UpdateFunc) *FileAuthority {
	return &FileAuthority{
		path:     cfg.Path,
		reload:   time.Duration(cfg.ReloadSeconds) * time.Second,
		updateCb: updateCb,
		stop:     make(chan struct{}),
	}
}

func (f *FileAuthority) Start() {
	f.log.Info().Str("path", f.path).Dur("reload", f.reload).Msg("authority: starting file client")
	go f.run()
}

func (f *FileAuthority) Stop() {
	f.log.Info().Str("path", f.path).Msg("authority: stopping file client")
	close(f.stop)
}

func (f *FileAuthority) run() {
	f.load()
	if f.reload == 0 {
		return
	}
	// This does not give an exact "reload" period; that is fine, since
	// it only governs how quickly a neighbour change is picked up.
	ticker := time.NewTicker(f.reload)
	defer ticker.Stop()
	for {
		select {
		case <-f.stop:
			return
		case <-ticker.C:
			f.load()
		}
	}
}

func (f *FileAuthority) load() {
	f.log.Debug().Msg("authority: loading neighbours")
	fd, err := os.Open(f.path)
	if err != nil {
		// No file -> no neighbours defined, i.e. empty set.
		f.updateCb(Sections{})
		return
	}
	defer fd.Close()

	sections := parseINI(fd)
	f.log.Debug().Int("neighbours", len(sections)).Msg("authority: loaded neighbours")
	f.updateCb(sections)
}
