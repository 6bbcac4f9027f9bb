package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/joho/godotenv"

	"github.com/meridian-ml/protonet/pkg/datasets"
	"github.com/meridian-ml/protonet/pkg/eval"
	"github.com/meridian-ml/protonet/pkg/export"
	"github.com/meridian-ml/protonet/pkg/model"
	"github.com/meridian-ml/protonet/pkg/results"
)

func loadEnv(filenames ...string) {
	for _, filename := range filenames {
		if s, err := os.Stat(filename); err == nil && !s.IsDir() {
			godotenv.Load(filename)
		}
	}
}

func main() {
	if _, ok := os.LookupEnv("ENV"); !ok {
		env := "development"
		os.Setenv("ENV", env)
	}
	loadEnv(".env."+os.Getenv("ENV")+".local", ".env."+os.Getenv("ENV"), ".env.local", ".env")

	params := eval.NewEvalParamsFromDefaults()
	params.Write(os.Stdout, "Few-Shot Config")

	pw := progress.NewWriter()
	pw.SetMessageLength(40)
	pw.SetNumTrackersExpected(2)
	pw.SetSortBy(progress.SortByPercentDsc)
	pw.SetStyle(progress.StyleDefault)
	pw.SetTrackerLength(15)
	pw.SetTrackerPosition(progress.PositionRight)
	pw.SetUpdateFrequency(time.Millisecond * 100)
	pw.Style().Colors = progress.StyleColorsExample
	pw.Style().Options.PercentFormat = "%2.0f%%"
	go pw.Render()

	var ds datasets.Dataset
	switch params.Dataset {
	case "synthetic":
		if s, err := datasets.NewSynthetic(params.Way*4, params.Shot+params.Query+5, params.ImageSize, params.Seed); err != nil {
			log.Fatalf("error building synthetic dataset: %v", err)
		} else {
			ds = s
		}
	case "omniglot", "folder":
		if params.Dataset == "omniglot" {
			if err := datasets.DownloadOmniglot(params.DataDir, pw); err != nil {
				log.Fatalf("error fetching omniglot: %v", err)
			}
		}
		folder, err := datasets.NewImageFolder(params.DataDir, params.ImageSize)
		if err != nil {
			log.Fatalf("error opening dataset: %v", err)
		}
		if params.CacheDir != "" {
			if cache, err := datasets.OpenImageCache(params.CacheDir); err != nil {
				log.Fatalf("error opening image cache: %v", err)
			} else {
				folder.SetCache(cache)
				defer cache.Close()
			}
		}
		ds = folder
	default:
		log.Fatalf("unknown dataset %q", params.Dataset)
	}

	cfg := model.Config{
		Classifier: params.Classifier,
		NumClasses: params.Way,
		Dropout:    params.Dropout,
	}
	if params.Checkpoint != "" {
		cfg.Pretrained = true
		cfg.PretrainedPath = params.Checkpoint
	}
	m, err := model.ResNet18(cfg)
	if err != nil {
		log.Fatalf("error building model: %v", err)
	}

	sampler, err := datasets.NewSampler(ds, params.Way, params.Shot, params.Query, params.Seed)
	if err != nil {
		log.Fatalf("error building sampler: %v", err)
	}

	metrics, err := eval.Run(m, sampler, params.Episodes, pw)
	if err != nil {
		log.Fatalf("evaluation error: %v", err)
	}

	pw.Stop()
	for pw.IsRenderInProgress() {
		time.Sleep(100 * time.Millisecond)
	}

	metrics.Write(os.Stdout)

	if params.ExportPrefix != "" {
		if ep, err := sampler.Sample(); err != nil {
			log.Fatalf("error sampling export episode: %v", err)
		} else if bank, err := m.FinalFeatures(ep); err != nil {
			log.Fatalf("error aggregating features: %v", err)
		} else {
			if err := export.WriteCSV(bank, m.NumClasses(), params.ExportPrefix+".csv"); err != nil {
				log.Fatalf("error writing feature bank csv: %v", err)
			}
			if err := export.WriteJSON(bank, m.NumClasses(), params.ExportPrefix+".json"); err != nil {
				log.Fatalf("error writing feature bank json: %v", err)
			}
			log.Printf("exported %d feature rows to %s.{csv,json}", bank.Len(), params.ExportPrefix)
		}
	}

	if params.SaveCheckpoint != "" {
		if err := m.SaveCheckpoint(params.SaveCheckpoint, "evaluation snapshot"); err != nil {
			log.Fatalf("error saving checkpoint: %v", err)
		}
		log.Printf("saved checkpoint to %s", params.SaveCheckpoint)
	}

	if params.ResultsURL != "" {
		if db, err := results.Connect(context.Background(), params.ResultsURL); err != nil {
			log.Fatalf("error connecting to results store: %v", err)
		} else if err := results.Record(context.Background(), db, results.Run{
			Dataset:    params.Dataset,
			Classifier: params.Classifier,
			Way:        params.Way,
			Shot:       params.Shot,
			Query:      params.Query,
			Episodes:   metrics.Episodes,
			Accuracy:   metrics.Mean,
			StdDev:     metrics.StdDev,
			CI95:       metrics.CI95,
			Checkpoint: params.Checkpoint,
		}); err != nil {
			log.Fatalf("error recording run: %v", err)
		} else {
			log.Printf("recorded run to results store")
		}
	}
}
