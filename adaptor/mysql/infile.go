// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mysql

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	uuid "github.com/nu7hatch/gouuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/compose/rowflow/adaptor"
	"github.com/compose/rowflow/log"
	"github.com/compose/rowflow/row"
)

const dateLayout = "2006-01-02 15:04:05.999999"

var escaper = strings.NewReplacer(
	`\`, `\\`,
	"\t", `\t`,
	"\n", `\n`,
	"\r", `\r`,
	"\x00", `\0`,
)

// Load streams the rows into the target table.
func (m *MySQL) Load(ctx context.Context, req adaptor.Request) ([]string, error) {
	rr := adaptor.NewRowReader(req.Format, req.Meta, req.Reader)
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	name := "rowflow-" + id.String()

	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		err := writeInfile(pw, rr)
		pw.CloseWithError(err)
		done <- err
	}()
	mysql.RegisterReaderHandler(name, func() io.Reader { return pr })
	defer mysql.DeregisterReaderHandler(name)

	warnings, err := m.load(ctx, name, req.Target, rr.Meta())
	if err != nil {
		// the writer returns once the rows are closed
		pr.CloseWithError(err)
		return warnings, err
	}
	if err := <-done; err != nil {
		return warnings, errors.Wrap(err, "reading rows")
	}
	return warnings, nil
}

// load runs the statement and reads its warnings on the same connection.
func (m *MySQL) load(ctx context.Context, name, target string, meta *row.Meta) ([]string, error) {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if !m.ForeignKeyChecks {
		if _, err := conn.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS=0"); err != nil {
			return nil, err
		}
		defer conn.ExecContext(context.Background(), "SET FOREIGN_KEY_CHECKS=1")
	}

	res, err := conn.ExecContext(ctx, loadStatement(name, target, m.Duplicates, meta))
	if err != nil {
		return nil, err
	}
	n, _ := res.RowsAffected()
	log.With("table", target).With("rows", n).Debugln("LOAD DATA")
	return showWarnings(ctx, conn)
}

func showWarnings(ctx context.Context, conn *sql.Conn) ([]string, error) {
	rows, err := conn.QueryContext(ctx, "SHOW WARNINGS")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var warnings []string
	for rows.Next() {
		var (
			level, message string
			code           int
		)
		if err := rows.Scan(&level, &code, &message); err != nil {
			return warnings, err
		}
		warnings = append(warnings, fmt.Sprintf("%s %d: %s", level, code, message))
	}
	return warnings, rows.Err()
}

func quoteIdentifier(name string) string {
	return "`" + strings.Replace(name, "`", "``", -1) + "`"
}

func quoteTarget(target string) string {
	if db, table, err := adaptor.SplitNamespace(target); err == nil {
		return quoteIdentifier(db) + "." + quoteIdentifier(table)
	}
	return quoteIdentifier(target)
}

func loadStatement(name, target, duplicates string, meta *row.Meta) string {
	cols := make([]string, meta.Size())
	for i, n := range meta.FieldNames() {
		cols[i] = quoteIdentifier(n)
	}
	mode := ""
	if duplicates != "" {
		mode = strings.ToUpper(duplicates) + " "
	}
	return fmt.Sprintf("LOAD DATA LOCAL INFILE 'Reader::%s' %sINTO TABLE %s CHARACTER SET utf8mb4 (%s)",
		name, mode, quoteTarget(target), strings.Join(cols, ", "))
}

// writeInfile writes rows in the default LOAD DATA layout: fields separated
// by tabs, lines by newlines, special characters escaped with a backslash
// and \N for null.
func writeInfile(w io.Writer, rr *adaptor.RowReader) error {
	bw := bufio.NewWriter(w)
	meta := rr.Meta()
	for {
		r, err := rr.Read()
		if err == io.EOF {
			return bw.Flush()
		}
		if err != nil {
			return err
		}
		for i, v := range meta.Values() {
			if i > 0 {
				bw.WriteByte('\t')
			}
			s, err := infileValue(v, r[i])
			if err != nil {
				return err
			}
			bw.WriteString(s)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
}

func infileValue(v *row.Value, n interface{}) (string, error) {
	if n == nil {
		return `\N`, nil
	}
	switch t := n.(type) {
	case bool:
		if t {
			return "1", nil
		}
		return "0", nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case decimal.Decimal:
		return t.String(), nil
	case time.Time:
		return t.Format(dateLayout), nil
	case string:
		return escaper.Replace(t), nil
	case []byte:
		return escaper.Replace(string(t)), nil
	}
	b, err := json.Marshal(n)
	if err != nil {
		return "", errors.Wrapf(err, "encoding %s", v.Name)
	}
	return escaper.Replace(string(b)), nil
}
