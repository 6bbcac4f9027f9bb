package eval_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/meridian-ml/protonet/pkg/eval"
)

func TestParamDefaults(t *testing.T) {
	if got := eval.Way(); got != 5 {
		t.Errorf("expected default way 5, got %d", got)
	}
	if got := eval.Shot(); got != 5 {
		t.Errorf("expected default shot 5, got %d", got)
	}
	if got := eval.Query(); got != 15 {
		t.Errorf("expected default query 15, got %d", got)
	}
	if got := eval.Episodes(); got != 200 {
		t.Errorf("expected default episodes 200, got %d", got)
	}
	if got := eval.ImageSize(); got != 84 {
		t.Errorf("expected default image size 84, got %d", got)
	}
	if got := eval.Seed(); got != 1 {
		t.Errorf("expected default seed 1, got %d", got)
	}
	if got := eval.Dataset(); got != "synthetic" {
		t.Errorf("expected default dataset synthetic, got %s", got)
	}
	if got := eval.Classifier(); got != "cosine" {
		t.Errorf("expected default classifier cosine, got %s", got)
	}
	if got := eval.Dropout(); got != 0 {
		t.Errorf("expected default dropout 0, got %v", got)
	}
}

func TestParamEnvOverrides(t *testing.T) {
	t.Setenv("FEWSHOT_WAY", "20")
	t.Setenv("FEWSHOT_SEED", "42")
	t.Setenv("FEWSHOT_CLASSIFIER", "linear")
	t.Setenv("FEWSHOT_DROPOUT", "0.25")

	if got := eval.Way(); got != 20 {
		t.Errorf("expected way 20, got %d", got)
	}
	if got := eval.Seed(); got != 42 {
		t.Errorf("expected seed 42, got %d", got)
	}
	if got := eval.Classifier(); got != "linear" {
		t.Errorf("expected classifier linear, got %s", got)
	}
	if got := eval.Dropout(); got != 0.25 {
		t.Errorf("expected dropout 0.25, got %v", got)
	}
}

func TestParamBounds(t *testing.T) {
	t.Setenv("FEWSHOT_WAY", "100")
	t.Setenv("FEWSHOT_SHOT", "0")
	t.Setenv("FEWSHOT_EPISODES", "-5")
	t.Setenv("FEWSHOT_IMAGE_SIZE", "4")
	t.Setenv("FEWSHOT_DROPOUT", "2.5")

	if got := eval.Way(); got != 50 {
		t.Errorf("expected way clamped to 50, got %d", got)
	}
	if got := eval.Shot(); got != 1 {
		t.Errorf("expected shot clamped to 1, got %d", got)
	}
	if got := eval.Episodes(); got != 1 {
		t.Errorf("expected episodes clamped to 1, got %d", got)
	}
	if got := eval.ImageSize(); got != 8 {
		t.Errorf("expected image size clamped to 8, got %d", got)
	}
	if got := eval.Dropout(); got != 0.9 {
		t.Errorf("expected dropout clamped to 0.9, got %v", got)
	}
}

func TestParamsWrite(t *testing.T) {
	params := eval.NewEvalParamsFromDefaults()
	var buf bytes.Buffer
	params.Write(&buf, "Few-Shot Config")
	out := buf.String()
	for _, want := range []string{"Few-Shot Config", "FEWSHOT_WAY", "FEWSHOT_EPISODES", "FEWSHOT_CLASSIFIER"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q", want)
		}
	}
}
