package protocol

import (
	"io"

	"github.com/aretw0/ferry/pkg/domain"
)

// progressReader reports every chunk read through it.
type progressReader struct {
	r      io.Reader
	total  int64
	loaded int64
	upload bool
	report func(domain.Progress)
}

func newProgressReader(r io.Reader, total int64, upload bool, report func(domain.Progress)) io.Reader {
	if report == nil {
		return r
	}
	return &progressReader{r: r, total: total, upload: upload, report: report}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.loaded += int64(n)
		tick := domain.Progress{Upload: p.upload, Loaded: p.loaded, Total: p.total}
		if p.total > 0 {
			tick.Percentage = float64(p.loaded) / float64(p.total) * 100
		}
		p.report(tick)
	}
	return n, err
}
