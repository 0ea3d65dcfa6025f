package data

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"grid-backtest/internal/model"

	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
)

// Blob layout: magic "GBKC", uint16 format version, uint32 record count
// (big endian), then a msgpack array of records.
const (
	blobMagic      = "GBKC"
	BlobVersion    = uint16(1)
	blobHeaderSize = len(blobMagic) + 2 + 4
)

var (
	ErrCorruptBlob        = errors.New("corrupt cache blob")
	ErrUnsupportedVersion = errors.New("unsupported cache blob version")
)

// blobRecord keeps decimals as canonical strings so precision survives the
// round trip.
type blobRecord struct {
	OpenTime    int64  `msgpack:"t"`
	Open        string `msgpack:"o"`
	High        string `msgpack:"h"`
	Low         string `msgpack:"l"`
	Close       string `msgpack:"c"`
	Volume      string `msgpack:"v"`
	QuoteVolume string `msgpack:"q"`
}

func EncodeCandles(candles []model.Candle) ([]byte, error) {
	recs := make([]blobRecord, len(candles))
	for i, c := range candles {
		recs[i] = blobRecord{
			OpenTime:    c.OpenTime,
			Open:        c.Open.String(),
			High:        c.High.String(),
			Low:         c.Low.String(),
			Close:       c.Close.String(),
			Volume:      c.Volume.String(),
			QuoteVolume: c.QuoteVolume.String(),
		}
	}
	payload, err := msgpack.Marshal(recs)
	if err != nil {
		return nil, fmt.Errorf("encode candles: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(blobHeaderSize + len(payload))
	buf.WriteString(blobMagic)
	binary.Write(&buf, binary.BigEndian, BlobVersion)
	binary.Write(&buf, binary.BigEndian, uint32(len(candles)))
	buf.Write(payload)
	return buf.Bytes(), nil
}

func DecodeCandles(blob []byte) ([]model.Candle, error) {
	if len(blob) < blobHeaderSize || string(blob[:len(blobMagic)]) != blobMagic {
		return nil, ErrCorruptBlob
	}
	version := binary.BigEndian.Uint16(blob[4:6])
	if version != BlobVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	count := binary.BigEndian.Uint32(blob[6:10])

	var recs []blobRecord
	if err := msgpack.Unmarshal(blob[blobHeaderSize:], &recs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptBlob, err)
	}
	if uint32(len(recs)) != count {
		return nil, fmt.Errorf("%w: header says %d records, payload has %d", ErrCorruptBlob, count, len(recs))
	}

	out := make([]model.Candle, len(recs))
	for i, r := range recs {
		c := model.Candle{OpenTime: r.OpenTime}
		fields := []struct {
			dst *decimal.Decimal
			src string
		}{
			{&c.Open, r.Open}, {&c.High, r.High}, {&c.Low, r.Low}, {&c.Close, r.Close},
			{&c.Volume, r.Volume}, {&c.QuoteVolume, r.QuoteVolume},
		}
		for _, f := range fields {
			v, err := decimal.NewFromString(f.src)
			if err != nil {
				return nil, fmt.Errorf("%w: record %d: %v", ErrCorruptBlob, i, err)
			}
			*f.dst = v
		}
		out[i] = c
	}
	return out, nil
}
