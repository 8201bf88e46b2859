package wire

import (
	"bytes"
	"testing"
)

func TestGetCommand(t *testing.T) {
	got := GetCommand([]string{"a", "b"}, false)
	if string(got) != "get a b\r\n" {
		t.Errorf("GetCommand = %q", got)
	}
	got = GetCommand([]string{"a"}, true)
	if string(got) != "gets a\r\n" {
		t.Errorf("GetCommand withCas = %q", got)
	}
}

func TestStoreCommand(t *testing.T) {
	got := StoreCommand(VerbSet, "k", 5, 0, []byte("hi"), 0, false)
	want := "set k 5 0 2\r\nhi\r\n"
	if string(got) != want {
		t.Errorf("StoreCommand = %q, want %q", got, want)
	}

	got = StoreCommand(VerbCas, "k", 0, 0, []byte("hi"), 77, false)
	want = "cas k 0 0 2 77\r\nhi\r\n"
	if string(got) != want {
		t.Errorf("StoreCommand cas = %q, want %q", got, want)
	}
}

func TestParserFeedsHeaderAndPayloadInOneShot(t *testing.T) {
	p := NewParser()
	p.Feed([]byte("VALUE foo 0 5\r\nhello\r\nEND\r\n"))
	recs, err := p.Step()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records (VALUE, END), got %d: %+v", len(recs), recs)
	}
	if recs[0].Kind != KindValue || recs[0].Key != "foo" || !bytes.Equal(recs[0].Data, []byte("hello")) {
		t.Errorf("unexpected VALUE record: %+v", recs[0])
	}
	if recs[1].Kind != KindEnd {
		t.Errorf("expected END record, got %+v", recs[1])
	}
}

func TestParserTrulyFragmentedAcrossFeeds(t *testing.T) {
	p := NewParser()
	full := []byte("VALUE foo 0 5\r\nhello\r\nEND\r\n")

	var all []Record
	for i := 0; i < len(full); i++ {
		p.Feed(full[i : i+1])
		recs, err := p.Step()
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		all = append(all, recs...)
	}

	if len(all) != 2 {
		t.Fatalf("expected 2 records total across fragmented feeds, got %d: %+v", len(all), all)
	}
	if all[0].Kind != KindValue || string(all[0].Data) != "hello" {
		t.Errorf("unexpected VALUE record: %+v", all[0])
	}
	if all[1].Kind != KindEnd {
		t.Errorf("expected END record, got %+v", all[1])
	}
}

func TestParserValueWithCas(t *testing.T) {
	p := NewParser()
	p.Feed([]byte("VALUE foo 0 2 99\r\nhi\r\nEND\r\n"))
	recs, err := p.Step()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[0].Cas != 99 || !recs[0].HasCas {
		t.Fatalf("expected cas token 99 on VALUE record, got %+v", recs[0])
	}
}

func TestParserStatusLines(t *testing.T) {
	p := NewParser()
	p.Feed([]byte("STORED\r\nNOT_FOUND\r\n"))
	recs, err := p.Step()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[0].Status != StatusStored || recs[1].Status != StatusNotFound {
		t.Fatalf("unexpected status records: %+v", recs)
	}
}

func TestParserErrorLines(t *testing.T) {
	p := NewParser()
	p.Feed([]byte("ERROR\r\nCLIENT_ERROR bad command\r\nSERVER_ERROR out of memory\r\n"))
	recs, err := p.Step()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 error records, got %d", len(recs))
	}
	if recs[0].ErrKind != ErrGeneric {
		t.Errorf("expected generic error, got %+v", recs[0])
	}
	if recs[1].ErrKind != ErrClient || recs[1].Message != "bad command" {
		t.Errorf("unexpected client error: %+v", recs[1])
	}
	if recs[2].ErrKind != ErrServer || recs[2].Message != "out of memory" {
		t.Errorf("unexpected server error: %+v", recs[2])
	}
}

func TestParserBareLFIsFatal(t *testing.T) {
	p := NewParser()
	p.Feed([]byte("STORED\n"))
	_, err := p.Step()
	if err == nil {
		t.Fatal("expected a FrameError on a bare LF")
	}
	if _, ok := err.(*FrameError); !ok {
		t.Fatalf("expected *FrameError, got %T", err)
	}
}

func TestParserNumericAndStatsAndVersion(t *testing.T) {
	p := NewParser()
	p.Feed([]byte("7\r\nSTAT curr_items 3\r\nEND\r\nVERSION 1.6.0\r\n"))
	recs, err := p.Step()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 4 {
		t.Fatalf("expected 4 records, got %d: %+v", len(recs), recs)
	}
	if recs[0].Kind != KindNumeric || recs[0].Numeric != 7 {
		t.Errorf("unexpected numeric record: %+v", recs[0])
	}
	if recs[1].Kind != KindStat || recs[1].StatKey != "curr_items" || recs[1].StatValue != "3" {
		t.Errorf("unexpected stat record: %+v", recs[1])
	}
	if recs[3].Kind != KindVersion || recs[3].Version != "1.6.0" {
		t.Errorf("unexpected version record: %+v", recs[3])
	}
}

func TestParserIncompleteInputReturnsNoRecordsNoError(t *testing.T) {
	p := NewParser()
	p.Feed([]byte("VALUE foo 0 10\r\nhel"))
	recs, err := p.Step()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected no complete records yet, got %+v", recs)
	}
}
