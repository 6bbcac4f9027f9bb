package model

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// FeatureGroup identifies which label band a feature-bank row belongs to.
type FeatureGroup int

const (
	GroupSupport FeatureGroup = iota
	GroupQuery
	GroupClassifier
	GroupPrototype
)

func (g FeatureGroup) String() string {
	switch g {
	case GroupSupport:
		return "support"
	case GroupQuery:
		return "query"
	case GroupClassifier:
		return "classifier"
	case GroupPrototype:
		return "prototype"
	}
	return "unknown"
}

// FeatureBank is the aggregated episodic export: support embeddings, query
// embeddings, classifier weight rows (when a head is attached) and class
// prototypes, concatenated in that order, every row L2-normalized, with
// row-aligned banded labels. Rows are plain slices, detached from any
// engine tensor.
type FeatureBank struct {
	Features [][]float64
	Labels   []int
}

// Label bands for a bank built with C classes: support labels stay in
// [0, C); query labels are shifted by 2C; classifier rows are 3C + class;
// prototypes are 4C + class. The band [C, 2C) is never produced; the
// offsets are part of the export contract and must not change.

// SplitLabel recovers the group and class index from a banded label.
func SplitLabel(label, numClasses int) (FeatureGroup, int, error) {
	if numClasses <= 0 {
		return 0, 0, fmt.Errorf("number of classes must be positive, got %d", numClasses)
	}
	switch {
	case label < 0:
		return 0, 0, fmt.Errorf("negative label %d", label)
	case label < numClasses:
		return GroupSupport, label, nil
	case label < 2*numClasses:
		return 0, 0, fmt.Errorf("label %d falls in the unused band [%d, %d)", label, numClasses, 2*numClasses)
	case label < 3*numClasses:
		return GroupQuery, label - 2*numClasses, nil
	case label < 4*numClasses:
		return GroupClassifier, label - 3*numClasses, nil
	case label < 5*numClasses:
		return GroupPrototype, label - 4*numClasses, nil
	}
	return 0, 0, fmt.Errorf("label %d beyond the prototype band", label)
}

// FinalFeatures embeds an episode and assembles the labeled feature bank.
// Support and query rows keep their episode labels (query shifted into its
// band); classifier weight rows are appended only when a head is attached;
// prototypes are computed from the support embeddings and must cover every
// class.
func (m *Model) FinalFeatures(ep Episode) (*FeatureBank, error) {
	if err := ep.Validate(); err != nil {
		return nil, err
	}

	support, err := m.Embed(ep.SupportImages)
	if err != nil {
		return nil, fmt.Errorf("embedding support set: %v", err)
	}
	query, err := m.Embed(ep.QueryImages)
	if err != nil {
		return nil, fmt.Errorf("embedding query set: %v", err)
	}

	c := m.numClasses
	bank := &FeatureBank{}

	n, _ := support.Dims()
	for i := range n {
		bank.Features = append(bank.Features, copyRow(support.RawRowView(i)))
		bank.Labels = append(bank.Labels, ep.SupportLabels[i])
	}

	n, _ = query.Dims()
	for i := range n {
		bank.Features = append(bank.Features, copyRow(query.RawRowView(i)))
		bank.Labels = append(bank.Labels, ep.QueryLabels[i]+2*c)
	}

	if m.head != nil {
		rows := m.head.WeightRows()
		for i := range c {
			bank.Features = append(bank.Features, copyRow(rows.RawRowView(i)))
			bank.Labels = append(bank.Labels, 3*c+i)
		}
	}

	prototypes, err := ComputePrototypes(support, ep.SupportLabels, c)
	if err != nil {
		return nil, fmt.Errorf("computing prototypes: %v", err)
	}
	for i := range c {
		bank.Features = append(bank.Features, copyRow(prototypes.RawRowView(i)))
		bank.Labels = append(bank.Labels, 4*c+i)
	}

	normalizeRows(bank.Features)
	return bank, nil
}

func (b *FeatureBank) Len() int {
	return len(b.Features)
}

// Dim returns the feature width, 0 for an empty bank.
func (b *FeatureBank) Dim() int {
	if len(b.Features) == 0 {
		return 0
	}
	return len(b.Features[0])
}

func normalizeRows(rows [][]float64) {
	for _, row := range rows {
		norm := floats.Norm(row, 2)
		if norm < normEpsilon {
			norm = normEpsilon
		}
		for j := range row {
			row[j] /= norm
		}
	}
}

func copyRow(row []float64) []float64 {
	out := make([]float64, len(row))
	copy(out, row)
	return out
}
