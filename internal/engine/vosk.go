//go:build vosk

package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	vosk "github.com/alphacep/vosk-api/go"

	"github.com/rbright/jarvis/internal/session"
)

func init() {
	vosk.SetLogLevel(-1)
	Register("vosk", newVoskDecoder)
}

var (
	modelsMu sync.Mutex
	models   = map[string]*vosk.VoskModel{}
)

// loadModel caches acoustic models by path; they are expensive and grammar-independent.
func loadModel(path string) (*vosk.VoskModel, error) {
	modelsMu.Lock()
	defer modelsMu.Unlock()
	if model, ok := models[path]; ok {
		return model, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("vosk model %q: %w", path, err)
	}
	model, err := vosk.NewModel(path)
	if err != nil {
		return nil, fmt.Errorf("load vosk model %q: %w", path, err)
	}
	models[path] = model
	return model, nil
}

type voskResult struct {
	Text string `json:"text"`
}

type voskDecoder struct {
	rec *vosk.VoskRecognizer
}

func newVoskDecoder(cfg DecoderConfig) (Decoder, error) {
	model, err := loadModel(cfg.ModelPath)
	if err != nil {
		return nil, err
	}
	grammar, err := json.Marshal(append(append([]string(nil), cfg.Grammar...), "[unk]"))
	if err != nil {
		return nil, fmt.Errorf("encode grammar: %w", err)
	}
	rec, err := vosk.NewRecognizerGrm(model, float64(cfg.SampleRate), string(grammar))
	if err != nil {
		return nil, fmt.Errorf("%w: vosk rejected grammar: %v", session.ErrResourceInvalid, err)
	}
	return &voskDecoder{rec: rec}, nil
}

func (d *voskDecoder) Accept(pcm []byte) (string, bool, error) {
	if d.rec.AcceptWaveform(pcm) == 0 {
		return "", false, nil
	}
	var result voskResult
	if err := json.Unmarshal([]byte(d.rec.Result()), &result); err != nil {
		return "", false, fmt.Errorf("decode vosk result: %w", err)
	}
	if result.Text == "[unk]" {
		return "", false, nil
	}
	return result.Text, true, nil
}

func (d *voskDecoder) Close() error {
	if d.rec != nil {
		d.rec.Free()
		d.rec = nil
	}
	return nil
}
