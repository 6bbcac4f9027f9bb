package eval

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
)

type EvalParams struct {
	Dataset   string
	DataDir   string
	ImageSize int

	Way      int
	Shot     int
	Query    int
	Episodes int
	Seed     uint64

	Classifier string
	Dropout    float64

	Checkpoint     string
	SaveCheckpoint string
	CacheDir       string
	ExportPrefix   string
	ResultsURL     string
}

func (p *EvalParams) Write(w io.Writer, title string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.AppendRows([]table.Row{
		{"FEWSHOT_DATASET", p.Dataset},
		{"FEWSHOT_DATA_DIR", p.DataDir},
		{"FEWSHOT_IMAGE_SIZE", fmt.Sprintf("%d", p.ImageSize)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"FEWSHOT_WAY", fmt.Sprintf("%d", p.Way)},
		{"FEWSHOT_SHOT", fmt.Sprintf("%d", p.Shot)},
		{"FEWSHOT_QUERY", fmt.Sprintf("%d", p.Query)},
		{"FEWSHOT_EPISODES", fmt.Sprintf("%d", p.Episodes)},
		{"FEWSHOT_SEED", fmt.Sprintf("%d", p.Seed)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"FEWSHOT_CLASSIFIER", p.Classifier},
		{"FEWSHOT_DROPOUT", fmt.Sprintf("%.06f", p.Dropout)},
		{"FEWSHOT_CHECKPOINT", p.Checkpoint},
		{"FEWSHOT_SAVE_CHECKPOINT", p.SaveCheckpoint},
		{"FEWSHOT_CACHE", p.CacheDir},
		{"FEWSHOT_EXPORT", p.ExportPrefix},
		{"FEWSHOT_RESULTS_URL", p.ResultsURL},
	})
	t.Render()
}

func NewEvalParamsFromDefaults() EvalParams {
	return EvalParams{
		Dataset:   Dataset(),
		DataDir:   DataDir(),
		ImageSize: ImageSize(),

		Way:      Way(),
		Shot:     Shot(),
		Query:    Query(),
		Episodes: Episodes(),
		Seed:     Seed(),

		Classifier: Classifier(),
		Dropout:    Dropout(),

		Checkpoint:     Checkpoint(),
		SaveCheckpoint: SaveCheckpoint(),
		CacheDir:       CacheDir(),
		ExportPrefix:   ExportPrefix(),
		ResultsURL:     ResultsURL(),
	}
}

func envInt(name string, def func() int, dec func(v int) int) func() int {
	return func() int {
		value := def()
		if v, ok := os.LookupEnv(name); ok {
			if v, err := strconv.ParseInt(v, 10, 32); err != nil {
				log.Fatalf("failed to parse env.%s: %v", name, err)
			} else {
				value = int(v)
			}
		}
		return dec(value)
	}
}

func envUint64(name string, def func() uint64) func() uint64 {
	return func() uint64 {
		value := def()
		if v, ok := os.LookupEnv(name); ok {
			if v, err := strconv.ParseUint(v, 10, 64); err != nil {
				log.Fatalf("failed to parse env.%s: %v", name, err)
			} else {
				value = v
			}
		}
		return value
	}
}

func envFloat64(name string, def func() float64, dec func(v float64) float64) func() float64 {
	return func() float64 {
		value := def()
		if v, ok := os.LookupEnv(name); ok {
			if v, err := strconv.ParseFloat(v, 64); err != nil {
				log.Fatalf("failed to parse env.%s: %v", name, err)
			} else {
				value = v
			}
		}
		return dec(value)
	}
}

func envString(name string, def func() string) func() string {
	return func() string {
		value := def()
		if v, ok := os.LookupEnv(name); ok {
			value = v
		}
		return value
	}
}

var (
	Dataset = envString("FEWSHOT_DATASET", func() string { return "synthetic" })
	DataDir = envString("FEWSHOT_DATA_DIR", func() string { return "data/omniglot" })
	ImageSize = envInt("FEWSHOT_IMAGE_SIZE", func() int {
		return 84
	}, BoundImageSize)
)

var (
	Way = envInt("FEWSHOT_WAY", func() int {
		return 5
	}, BoundWay)
	Shot = envInt("FEWSHOT_SHOT", func() int {
		return 5
	}, BoundShot)
	Query = envInt("FEWSHOT_QUERY", func() int {
		return 15
	}, BoundQuery)
	Episodes = envInt("FEWSHOT_EPISODES", func() int {
		return 200
	}, BoundEpisodes)
	Seed = envUint64("FEWSHOT_SEED", func() uint64 { return 1 })
)

var (
	Classifier = envString("FEWSHOT_CLASSIFIER", func() string { return "cosine" })
	Dropout    = envFloat64("FEWSHOT_DROPOUT", func() float64 {
		return 0.0
	}, BoundDropout)
)

var (
	Checkpoint     = envString("FEWSHOT_CHECKPOINT", func() string { return "" })
	SaveCheckpoint = envString("FEWSHOT_SAVE_CHECKPOINT", func() string { return "" })
	CacheDir       = envString("FEWSHOT_CACHE", func() string { return "" })
	ExportPrefix   = envString("FEWSHOT_EXPORT", func() string { return "" })
	ResultsURL     = envString("FEWSHOT_RESULTS_URL", func() string { return os.Getenv("MONGO_URL") })
)
