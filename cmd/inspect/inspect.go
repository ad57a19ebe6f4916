package inspect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"errorledger/src/model"

	logger "github.com/sirupsen/logrus"
)

// ErrNotFound is returned by Show for an unknown signature.
var ErrNotFound = errors.New("error not found")

const timeLayout = "2006-01-02 15:04:05"

// Reader is served by the local ledger and by the HTTP client alike.
type Reader interface {
	TopErrors(ctx context.Context, limit int) ([]model.ErrorRecord, error)
	GetError(ctx context.Context, signature string) (*model.ErrorDetail, error)
}

type Inspect struct {
	Log    *logger.Entry
	Reader Reader
	Out    io.Writer
	Config *Config
}

// Top prints the most frequent errors as a table.
func (i *Inspect) Top(ctx context.Context) error {
	records, err := i.Reader.TopErrors(ctx, i.Config.Limit)
	if err != nil {
		i.Log.WithError(err).Error("Top, TopErrors")
		return err
	}

	tw := tabwriter.NewWriter(i.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SIGNATURE\tTYPE\tCOUNT\tLAST SEEN\tMESSAGE")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			shortSignature(r.Signature),
			r.Kind,
			r.OccurrenceCount,
			r.LastSeen.UTC().Format(timeLayout),
			r.Message,
		)
	}
	return tw.Flush()
}

// Show prints one error with its recent context snapshots.
func (i *Inspect) Show(ctx context.Context, signature string) error {
	detail, err := i.Reader.GetError(ctx, signature)
	if err != nil {
		i.Log.WithError(err).Error("Show, GetError")
		return err
	}
	if detail == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, signature)
	}

	tw := tabwriter.NewWriter(i.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Signature\t%s\n", detail.Signature)
	fmt.Fprintf(tw, "Type\t%s\n", detail.Kind)
	fmt.Fprintf(tw, "Code\t%s\n", detail.Code)
	fmt.Fprintf(tw, "Message\t%s\n", detail.Message)
	fmt.Fprintf(tw, "File\t%s\n", detail.SourceFile)
	fmt.Fprintf(tw, "Line\t%d\n", detail.SourceLine)
	fmt.Fprintf(tw, "Count\t%d\n", detail.OccurrenceCount)
	fmt.Fprintf(tw, "First seen\t%s\n", detail.FirstSeen.UTC().Format(timeLayout))
	fmt.Fprintf(tw, "Last seen\t%s\n", detail.LastSeen.UTC().Format(timeLayout))
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(i.Out, "\nTrace:\n%s\n", indent(detail.Trace))
	if len(detail.Context) == 0 {
		fmt.Fprintln(i.Out, "\nNo context available")
		return nil
	}
	for n, c := range detail.Context {
		fmt.Fprintf(i.Out, "\nContext #%d:\n%s\n", n+1, indent(c))
	}
	return nil
}

func shortSignature(sig string) string {
	if len(sig) > 12 {
		return sig[:12]
	}
	return sig
}

func indent(raw json.RawMessage) string {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(out)
}
