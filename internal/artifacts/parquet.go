// Parquet column-writer helpers for the trades/equity artifacts (spec.md
// §6.3: "trades.<columnar_ext>", "equity.<columnar_ext>"). Grounded on
// NimbleMarkets-dbn-go/internal/file/parquet_writer.go's GroupNode-schema
// + BufferedRowGroupWriter.Column(i).WriteBatch(...) pattern, the pack's
// only precedent for a columnar file writer. Money-denominated fields are
// written as their canonical decimal.Decimal string form (UTF8 byte
// arrays), never rounded to float64, preserving the exact-arithmetic
// guarantee spec.md's determinism contract extends to these artifacts.
package artifacts

import (
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	pqfile "github.com/apache/arrow-go/v18/parquet/file"
	pqschema "github.com/apache/arrow-go/v18/parquet/schema"

	"github.com/atlas-quant/tradecore/pkg/types"
)

func writerProps() *parquet.WriterProperties {
	return parquet.NewWriterProperties(
		parquet.WithVersion(parquet.V2_LATEST),
		parquet.WithCompression(compress.Codecs.Snappy))
}

func utf8Node(name string) pqschema.Node {
	return pqschema.MustPrimitive(pqschema.NewPrimitiveNodeConverted(
		name, parquet.Repetitions.Optional, parquet.Types.ByteArray, pqschema.ConvertedTypes.UTF8, 0, 0, 0, -1))
}

func int64Node(name string) pqschema.Node {
	return pqschema.NewInt64Node(name, parquet.Repetitions.Optional, -1)
}

// tradesGroupNode is the Parquet schema for one trades.parquet row
// (spec.md §6.3's Trade field inventory).
func tradesGroupNode() *pqschema.GroupNode {
	return pqschema.MustGroup(pqschema.NewGroupNode("schema", parquet.Repetitions.Required, pqschema.FieldList{
		int64Node("trade_id"),
		utf8Node("symbol"),
		utf8Node("side"),
		int64Node("entry_ts_ms"),
		utf8Node("entry_price"),
		int64Node("exit_ts_ms"),
		utf8Node("exit_price"),
		utf8Node("size_usdt"),
		utf8Node("leverage"),
		utf8Node("realized_pnl"),
		utf8Node("fees_paid"),
		utf8Node("net_pnl"),
		utf8Node("mae"),
		utf8Node("mfe"),
		utf8Node("exit_reason"),
	}, -1))
}

// equityGroupNode is the Parquet schema for one equity.parquet row
// (spec.md §6.3's EquityPoint field inventory).
func equityGroupNode() *pqschema.GroupNode {
	return pqschema.MustGroup(pqschema.NewGroupNode("schema", parquet.Repetitions.Required, pqschema.FieldList{
		int64Node("ts_close_ms"),
		utf8Node("wallet_balance"),
		utf8Node("unrealized_pnl"),
		utf8Node("equity"),
	}, -1))
}

// writeUTF8/writeInt64 mirror the donor's ParquetWriteRow_* pattern: the
// column chunk writer's WriteBatch result is not checked there either
// (its own "TODO: handle errors" comment), since the file writer's own
// FlushWithFooter surfaces any accumulated write failure.
func writeUTF8(rgw pqfile.BufferedRowGroupWriter, col int, s string) error {
	cw, err := rgw.Column(col)
	if err != nil {
		return err
	}
	cw.(*pqfile.ByteArrayColumnChunkWriter).WriteBatch([]parquet.ByteArray{parquet.ByteArray(s)}, []int16{1}, nil)
	return nil
}

func writeInt64(rgw pqfile.BufferedRowGroupWriter, col int, v int64) error {
	cw, err := rgw.Column(col)
	if err != nil {
		return err
	}
	cw.(*pqfile.Int64ColumnChunkWriter).WriteBatch([]int64{v}, []int16{1}, nil)
	return nil
}

// WriteTradesParquet writes trades in order to a new file at path.
func WriteTradesParquet(path string, trades []types.Trade) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("artifacts: create %s: %w", path, err)
	}
	defer f.Close()
	return writeTradesTo(f, trades)
}

func writeTradesTo(w io.Writer, trades []types.Trade) error {
	pw := pqfile.NewParquetWriter(w, tradesGroupNode(), pqfile.WithWriterProps(writerProps()))
	defer pw.Close()
	rgw := pw.AppendBufferedRowGroup()

	for _, t := range trades {
		fields := []struct {
			col int
			val string
		}{
			{1, t.Symbol},
			{2, string(t.Side)},
			{4, t.EntryPrice.String()},
			{6, t.ExitPrice.String()},
			{7, t.SizeQuote.String()},
			{8, t.Leverage.String()},
			{9, t.RealizedPnL.String()},
			{10, t.FeesPaid.String()},
			{11, t.NetPnL.String()},
			{12, t.MAE.String()},
			{13, t.MFE.String()},
			{14, t.ExitReason},
		}
		if err := writeInt64(rgw, 0, t.TradeID); err != nil {
			return err
		}
		if err := writeInt64(rgw, 3, t.EntryTsMs); err != nil {
			return err
		}
		if err := writeInt64(rgw, 5, t.ExitTsMs); err != nil {
			return err
		}
		for _, f := range fields {
			if err := writeUTF8(rgw, f.col, f.val); err != nil {
				return err
			}
		}
	}

	if err := rgw.Close(); err != nil {
		return fmt.Errorf("artifacts: close trades row group: %w", err)
	}
	if err := pw.FlushWithFooter(); err != nil {
		return fmt.Errorf("artifacts: flush trades parquet: %w", err)
	}
	return nil
}

// WriteEquityParquet writes equity points in order to a new file at path.
func WriteEquityParquet(path string, points []types.EquityPoint) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("artifacts: create %s: %w", path, err)
	}
	defer f.Close()
	return writeEquityTo(f, points)
}

func writeEquityTo(w io.Writer, points []types.EquityPoint) error {
	pw := pqfile.NewParquetWriter(w, equityGroupNode(), pqfile.WithWriterProps(writerProps()))
	defer pw.Close()
	rgw := pw.AppendBufferedRowGroup()

	for _, p := range points {
		if err := writeInt64(rgw, 0, p.TsCloseMs); err != nil {
			return err
		}
		if err := writeUTF8(rgw, 1, p.WalletBalance.String()); err != nil {
			return err
		}
		if err := writeUTF8(rgw, 2, p.UnrealizedPnL.String()); err != nil {
			return err
		}
		if err := writeUTF8(rgw, 3, p.Equity.String()); err != nil {
			return err
		}
	}

	if err := rgw.Close(); err != nil {
		return fmt.Errorf("artifacts: close equity row group: %w", err)
	}
	if err := pw.FlushWithFooter(); err != nil {
		return fmt.Errorf("artifacts: flush equity parquet: %w", err)
	}
	return nil
}
