package chunker

import "testing"

func TestAddressCounterResetsPerPage(t *testing.T) {
	pieces := []piece{
		{text: "a", page: 1, segment: 0},
		{text: "b", page: 1, segment: 0},
		{text: "c", page: 2, segment: 1},
		{text: "d", page: 2, segment: 2},
		{text: "e", page: 3, segment: 3},
	}

	chunks := address(pieces, false)
	want := []string{"1", "2", "1", "2", "1"}
	for i, w := range want {
		if chunks[i].ItemNumber != w {
			t.Errorf("chunk %d: expected item %q, got %q", i, w, chunks[i].ItemNumber)
		}
	}
}

func TestAddressStableSortByPage(t *testing.T) {
	// Two pieces on page 2 arrive interleaved with page 1; page sort is
	// stable, so page-2 pieces keep their extraction order.
	pieces := []piece{
		{text: "p2 first", page: 2, segment: 0},
		{text: "p1 only", page: 1, segment: 1},
		{text: "p2 second", page: 2, segment: 2},
	}

	chunks := address(pieces, false)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[0].Text != "p1 only" || chunks[0].ItemNumber != "1" {
		t.Errorf("unexpected first chunk: %+v", chunks[0])
	}
	if chunks[1].Text != "p2 first" || chunks[1].ItemNumber != "1" {
		t.Errorf("unexpected second chunk: %+v", chunks[1])
	}
	if chunks[2].Text != "p2 second" || chunks[2].ItemNumber != "2" {
		t.Errorf("unexpected third chunk: %+v", chunks[2])
	}
}

func TestAddressPreservesCount(t *testing.T) {
	pieces := []piece{
		{text: "a", page: 3}, {text: "b", page: 1}, {text: "c", page: 2},
	}
	chunks := address(pieces, false)
	if len(chunks) != len(pieces) {
		t.Errorf("addressing changed piece count: %d -> %d", len(pieces), len(chunks))
	}
}

func TestAddressHierarchicalNumbering(t *testing.T) {
	pieces := []piece{
		{text: "s0 p0", page: 1, segment: 0},
		{text: "s0 p1", page: 1, segment: 0},
		{text: "s1 p0", page: 1, segment: 1},
		{text: "s2 p0", page: 2, segment: 2},
		{text: "s2 p1", page: 2, segment: 2},
	}

	chunks := address(pieces, true)
	want := []string{"1.1", "1.2", "2.1", "1.1", "1.2"}
	for i, w := range want {
		if chunks[i].ItemNumber != w {
			t.Errorf("chunk %d: expected item %q, got %q", i, w, chunks[i].ItemNumber)
		}
	}
}

func TestAddressCarriesOverlapFlag(t *testing.T) {
	pieces := []piece{
		{text: "a", page: 1, overlap: true},
		{text: "b", page: 1},
	}
	chunks := address(pieces, false)
	if !chunks[0].IsOverlap || chunks[1].IsOverlap {
		t.Errorf("overlap flags not carried: %+v", chunks)
	}
}
