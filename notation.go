package secretsmanager

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"github.com/secretsmanager/client-go/internal/crypto"
	"github.com/secretsmanager/client-go/notation"
	"github.com/secretsmanager/client-go/record"
)

var uidPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{22}$`)

// GetNotationResults resolves a notation to its values.
//
// A single index or property yields one result. An empty index such as
// field/url[] yields every value of the field. The file selector yields
// the file content as URL-safe base64.
func (c *Client) GetNotationResults(ctx context.Context, s string) ([]string, error) {
	results, err := c.resolveNotation(ctx, s)
	if err != nil {
		return nil, &NotationError{Notation: s, Err: err}
	}
	return results, nil
}

// GetNotation resolves a notation that must yield exactly one value.
func (c *Client) GetNotation(ctx context.Context, s string) (string, error) {
	results, err := c.GetNotationResults(ctx, s)
	if err != nil {
		return "", err
	}
	if len(results) != 1 {
		return "", &NotationError{Notation: s, Err: fmt.Errorf("%w: got %d", ErrResultCount, len(results))}
	}
	return results[0], nil
}

// TryGetNotationResults is GetNotationResults for callers that treat any
// failure as "no value". Errors are logged and an empty list is returned.
func (c *Client) TryGetNotationResults(ctx context.Context, s string) []string {
	results, err := c.GetNotationResults(ctx, s)
	if err != nil {
		c.logger.Warn("notation lookup failed", zap.String("notation", s), zap.Error(err))
		return []string{}
	}
	return results
}

func (c *Client) resolveNotation(ctx context.Context, s string) ([]string, error) {
	n, err := notation.Parse(s)
	if err != nil {
		return nil, err
	}
	rec, err := c.resolveRecord(ctx, n.Record.Text)
	if err != nil {
		return nil, err
	}

	switch n.Selector.Text {
	case notation.SelectorType:
		return []string{rec.Type()}, nil
	case notation.SelectorTitle:
		return []string{rec.Title()}, nil
	case notation.SelectorNotes:
		return []string{rec.Notes()}, nil
	case notation.SelectorFile:
		return c.resolveFile(ctx, rec, n.Parameter.Text)
	}

	var field *record.Field
	if n.Selector.Text == notation.SelectorField {
		field = rec.Field(n.Parameter.Text)
	} else {
		field = rec.CustomField(n.Parameter.Text)
	}
	if field == nil {
		return nil, fmt.Errorf("%w: %s %q in record %s", ErrFieldNotFound, n.Selector.Text, n.Parameter.Text, rec.UID)
	}
	return fieldResults(field, n.Index1, n.Index2)
}

// resolveRecord finds the single record addressed by uid or title. A
// UID-shaped value is fetched directly first.
func (c *Client) resolveRecord(ctx context.Context, ref string) (*Record, error) {
	if uidPattern.MatchString(ref) {
		secrets, err := c.GetSecrets(ctx, ref)
		if err != nil {
			return nil, err
		}
		if len(secrets.Records) == 1 && secrets.Records[0].UID == ref {
			return secrets.Records[0], nil
		}
	}

	secrets, err := c.GetSecrets(ctx)
	if err != nil {
		return nil, err
	}
	matches := secrets.Records.ByTitle(ref)
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %q", ErrRecordNotFound, ref)
	case 1:
		return matches[0], nil
	}
	return nil, fmt.Errorf("%w: %d records titled %q", ErrAmbiguousRecord, len(matches), ref)
}

func (c *Client) resolveFile(ctx context.Context, rec *Record, name string) ([]string, error) {
	files := rec.FindFiles(name)
	switch len(files) {
	case 0:
		return nil, fmt.Errorf("%w: %q in record %s", ErrFileNotFound, name, rec.UID)
	case 1:
	default:
		return nil, fmt.Errorf("%w: %d files match %q in record %s", ErrAmbiguousFile, len(files), name, rec.UID)
	}
	content, err := c.DownloadFile(ctx, files[0])
	if err != nil {
		return nil, err
	}
	return []string{crypto.ToBase64URL(content)}, nil
}

// fieldResults applies the index sections to field.
//
//	url        value 0
//	url[1]     value 1
//	url[]      every value
//	name[first]     property of value 0
//	name[0][last]   property of value 0
//	name[][last]    property of every value
func fieldResults(field *record.Field, index1, index2 notation.Section) ([]string, error) {
	if !index1.Present {
		s, err := field.StringAt(0)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}

	if index1.Text == "" {
		if !index2.Present || index2.Text == "" {
			return field.Strings(), nil
		}
		out := make([]string, 0, len(field.Value))
		for _, v := range field.Value {
			p, err := record.Property(v, index2.Text, field.Type)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
		return out, nil
	}

	idx, err := strconv.Atoi(index1.Text)
	if err != nil {
		// name[first] is shorthand for name[0][first].
		if index2.Present {
			return nil, fmt.Errorf("%w: index %q is not a number", ErrNotationSyntax, index1.Text)
		}
		p, err := field.PropertyAt(0, index1.Text)
		if err != nil {
			return nil, err
		}
		return []string{p}, nil
	}

	if !index2.Present || index2.Text == "" {
		s, err := field.StringAt(idx)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
	p, err := field.PropertyAt(idx, index2.Text)
	if err != nil {
		return nil, err
	}
	return []string{p}, nil
}
