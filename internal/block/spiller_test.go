package block

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/ipc"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/federated-table-providers/internal/connector"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/schema"
)

func testDescriptor() *schema.Descriptor {
	return schema.NewBuilder().
		AddStringField("id").
		AddField("port", schema.TypeInt64).
		AddField("enabled", schema.TypeBool).
		AddField("modified", schema.TypeTimestamp).
		AddListField("aliases").
		AddStructListField("origins", "origin", "id", "domain_name").
		MustBuild()
}

type protocol string

func TestSpillerWritesAllColumnKinds(t *testing.T) {
	collector := &Collector{}
	defer collector.Release()

	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	spiller := NewSpiller(testDescriptor(), collector, WithAllocator(mem))

	modified := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	id := "E1"
	port := int32(443)
	origins := []string{"O1", "O2"}

	err := spiller.WriteRows(func(w RowWriter) (int, error) {
		w.OfferValue("id", &id)
		w.OfferValue("port", &port)
		w.OfferValue("enabled", true)
		w.OfferValue("modified", &modified)
		w.OfferList("aliases", []string{"a.example.com", "b.example.com"})
		if _, err := OfferComplexValue(w, "origins", origins, func(field string, o string) (string, error) {
			if field == "id" {
				return o, nil
			}
			return o + ".example.com", nil
		}); err != nil {
			return 0, err
		}
		return w.Result().Count(), nil
	})
	require.NoError(t, err)
	require.NoError(t, spiller.Close())

	stats := spiller.Stats()
	assert.Equal(t, Stats{Rows: 1, Matched: 1, Blocks: 1}, stats)

	rows := collector.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "E1", rows[0]["id"])
	assert.Equal(t, int64(443), rows[0]["port"])
	assert.Equal(t, true, rows[0]["enabled"])
	assert.Equal(t, modified, rows[0]["modified"])
	assert.Equal(t, []string{"a.example.com", "b.example.com"}, rows[0]["aliases"])
	assert.Equal(t, []map[string]string{
		{"id": "O1", "domain_name": "O1.example.com"},
		{"id": "O2", "domain_name": "O2.example.com"},
	}, rows[0]["origins"])
}

func TestSpillerPartialRowIsEmitted(t *testing.T) {
	collector := &Collector{}
	defer collector.Release()

	spiller := NewSpiller(testDescriptor(), collector)

	var missing *string
	var result RowResult
	err := spiller.WriteRows(func(w RowWriter) (int, error) {
		assert.False(t, w.OfferValue("id", missing))
		assert.True(t, w.OfferValue("port", protocol("80")))
		assert.False(t, w.OfferValue("enabled", "not a bool"))
		assert.False(t, w.OfferList("aliases", nil))
		result = w.Result()
		return result.Count(), nil
	})
	require.NoError(t, err)
	require.NoError(t, spiller.Close())

	assert.False(t, result.Matched())
	assert.Equal(t, []string{"id", "enabled", "aliases"}, result.Failed)
	assert.Equal(t, Stats{Rows: 1, Matched: 0, Blocks: 1}, spiller.Stats())

	rows := collector.Rows()
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0]["id"])
	assert.Equal(t, int64(80), rows[0]["port"])
	assert.Nil(t, rows[0]["enabled"])
	assert.Nil(t, rows[0]["aliases"])
	assert.Nil(t, rows[0]["origins"])
}

func TestSpillerFlushesFullBlocks(t *testing.T) {
	collector := &Collector{}
	defer collector.Release()

	spiller := NewSpiller(testDescriptor(), collector, WithMaxRowsPerBlock(2))
	for i := 0; i < 5; i++ {
		require.NoError(t, spiller.WriteRows(func(w RowWriter) (int, error) {
			w.OfferValue("port", i)
			return 1, nil
		}))
	}
	assert.Len(t, collector.Records, 2)

	require.NoError(t, spiller.Close())
	require.Len(t, collector.Records, 3)
	assert.Equal(t, int64(2), collector.Records[0].NumRows())
	assert.Equal(t, int64(1), collector.Records[2].NumRows())

	rows := collector.Rows()
	require.Len(t, rows, 5)
	for i, row := range rows {
		assert.Equal(t, int64(i), row["port"])
	}
}

func TestSpillerMapperErrorDiscardsRow(t *testing.T) {
	collector := &Collector{}
	defer collector.Release()

	spiller := NewSpiller(testDescriptor(), collector)
	resolveErr := &connector.ErrUnknownField{Column: "origins", Field: "bogus"}

	err := spiller.WriteRows(func(w RowWriter) (int, error) {
		w.OfferValue("id", "E1")
		_, err := OfferComplexValue(w, "origins", []int{1}, func(string, int) (string, error) {
			return "", resolveErr
		})
		return 0, err
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, connector.ErrInvariantViolation))

	require.NoError(t, spiller.Close())
	assert.Empty(t, collector.Records)
	assert.Equal(t, 0, spiller.Stats().Rows)
}

func TestRowWriterPanicsOnUndeclaredColumn(t *testing.T) {
	spiller := NewSpiller(testDescriptor(), &Collector{})
	defer spiller.Close()

	assert.Panics(t, func() {
		_ = spiller.WriteRows(func(w RowWriter) (int, error) {
			w.OfferValue("not_declared", "x")
			return 1, nil
		})
	})
	assert.Panics(t, func() {
		_ = spiller.WriteRows(func(w RowWriter) (int, error) {
			w.OfferValue("id", "x")
			w.OfferValue("id", "y")
			return 1, nil
		})
	})
	assert.Panics(t, func() {
		_ = spiller.WriteRows(func(w RowWriter) (int, error) {
			w.OfferValue("aliases", "x")
			return 1, nil
		})
	})
}

func TestSpillerEmitError(t *testing.T) {
	emitErr := errors.New("disk full")
	spiller := NewSpiller(testDescriptor(), EmitterFunc(func(arrow.Record) error { return emitErr }), WithMaxRowsPerBlock(1))

	err := spiller.WriteRows(func(w RowWriter) (int, error) { return 1, nil })
	require.Error(t, err)
	assert.True(t, errors.Is(err, emitErr))
}

func TestIPCEmitterRoundTrip(t *testing.T) {
	desc := testDescriptor()

	var buf bytes.Buffer
	emitter := NewIPCEmitter(&buf, desc.Arrow(), nil)
	spiller := NewSpiller(desc, emitter)

	require.NoError(t, spiller.WriteRows(func(w RowWriter) (int, error) {
		w.OfferValue("id", "E1")
		w.OfferList("aliases", []string{"x.example.com"})
		return 1, nil
	}))
	require.NoError(t, spiller.Close())
	require.NoError(t, emitter.Close())

	reader, err := ipc.NewReader(&buf)
	require.NoError(t, err)
	defer reader.Release()

	require.True(t, reader.Next())
	rows := RecordRows(reader.Record())
	require.Len(t, rows, 1)
	assert.Equal(t, "E1", rows[0]["id"])
	assert.Equal(t, []string{"x.example.com"}, rows[0]["aliases"])
	assert.False(t, reader.Next())
}
