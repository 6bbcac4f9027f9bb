// Package export writes episodic feature banks to files for downstream
// analysis.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"

	"github.com/meridian-ml/protonet/pkg/model"
)

// WriteCSV writes one bank row per record: the banded label, its decoded
// group and class index, then the feature values at full precision.
func WriteCSV(bank *model.FeatureBank, numClasses int, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %v", path, err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	header := []string{"label", "group", "class"}
	for i := range bank.Dim() {
		header = append(header, fmt.Sprintf("f%d", i))
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for i, row := range bank.Features {
		group, class, err := model.SplitLabel(bank.Labels[i], numClasses)
		if err != nil {
			return fmt.Errorf("row %d: %v", i, err)
		}
		record := []string{
			fmt.Sprintf("%d", bank.Labels[i]),
			group.String(),
			fmt.Sprintf("%d", class),
		}
		for _, v := range row {
			record = append(record, fmt.Sprintf("%g", v))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

type bankDocument struct {
	NumClasses int         `json:"num_classes"`
	Labels     []int       `json:"labels"`
	Features   [][]float64 `json:"features"`
}

func WriteJSON(bank *model.FeatureBank, numClasses int, path string) error {
	data, err := json.MarshalIndent(bankDocument{
		NumClasses: numClasses,
		Labels:     bank.Labels,
		Features:   bank.Features,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding feature bank: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %v", path, err)
	}
	return nil
}

// ReadJSON loads a bank written by WriteJSON, returning the bank and the
// class count its labels were banded with.
func ReadJSON(path string) (*model.FeatureBank, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("reading %s: %v", path, err)
	}
	var doc bankDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, fmt.Errorf("decoding feature bank: %v", err)
	}
	if len(doc.Labels) != len(doc.Features) {
		return nil, 0, fmt.Errorf("feature bank has %d labels but %d rows", len(doc.Labels), len(doc.Features))
	}
	return &model.FeatureBank{Features: doc.Features, Labels: doc.Labels}, doc.NumClasses, nil
}
