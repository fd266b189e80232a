package console

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"squeezemon/internal/application/port"
)

type Sink struct {
	mu  sync.Mutex
	out io.Writer
}

func NewSink() port.Sink { return &Sink{out: os.Stdout} }

func NewWriterSink(w io.Writer) *Sink { return &Sink{out: w} }

// 报告块前后各留一个空行，与日志行分开
func (s *Sink) WriteReport(ts time.Time, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.out, "\n%s %s\n\n", ts.Format("2006-01-02 15:04:05"), text)
	return err
}

func (s *Sink) NewLine() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprint(s.out, "\n")
	return err
}
