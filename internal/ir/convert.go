package ir

import (
	"fmt"
	"strings"
)

// ConversionError reports why a delta could not be converted to columns.
type ConversionError struct {
	Index  int // offending triple, -1 for whole-delta problems
	Reason string
}

func (e *ConversionError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("convert delta: %s", e.Reason)
	}
	return fmt.Sprintf("convert delta: triple %d: %s", e.Index, e.Reason)
}

// TriplesToColumns converts raw triples to struct-of-arrays form.
//
// An empty delta converts to empty columns. Deltas longer than MaxRunLen,
// and triples with an empty subject, predicate or object, are rejected.
func TriplesToColumns(triples []RawTriple) (Columns, error) {
	if len(triples) > MaxRunLen {
		return Columns{}, &ConversionError{
			Index:  -1,
			Reason: fmt.Sprintf("run length %d exceeds max %d", len(triples), MaxRunLen),
		}
	}

	cols := Columns{
		S: make([]uint64, len(triples)),
		P: make([]uint64, len(triples)),
		O: make([]uint64, len(triples)),
	}
	for i, t := range triples {
		switch {
		case strings.TrimSpace(t.Subject) == "":
			return Columns{}, &ConversionError{Index: i, Reason: "empty subject"}
		case strings.TrimSpace(t.Predicate) == "":
			return Columns{}, &ConversionError{Index: i, Reason: "empty predicate"}
		case strings.TrimSpace(t.Object) == "":
			return Columns{}, &ConversionError{Index: i, Reason: "empty object"}
		}
		cols.S[i] = TermID(t.Subject)
		cols.P[i] = TermID(t.Predicate)
		cols.O[i] = TermID(t.Object)
	}
	return cols, nil
}

// NewBatch converts a delta and stamps it with the admission cycle.
func NewBatch(triples []RawTriple, cycleID uint64) (Batch, error) {
	cols, err := TriplesToColumns(triples)
	if err != nil {
		return Batch{}, err
	}
	return Batch{
		Columns: cols,
		Triples: append([]RawTriple(nil), triples...),
		CycleID: cycleID,
	}, nil
}
