// Package testdata builds synthetic bank statements for tests.
package testdata

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Row is one generated movement, balance included.
type Row struct {
	Date    time.Time
	Concept string
	Notes   string
	Cents   int64
	Balance int64
}

var concepts = []struct{ concept, notes string }{
	{"TARGETA *6563", "SUPERMERCAT BONPREU"},
	{"TARGETA *6563", "FARMACIA PLA"},
	{"REBUT", "ENDESA ENERGIA"},
	{"TRANSFERENCIA", "LLOGUER PIS"},
	{"BIZUM", "SOPAR AMICS"},
	{"NOMINA", ""},
}

// Rows generates n movements from start, one to three days apart, with a
// running balance from opening. The same seed gives the same rows.
func Rows(seed int64, start time.Time, n int, opening int64) []Row {
	rnd := rand.New(rand.NewSource(seed))
	out := make([]Row, 0, n)
	day, balance := start, opening
	for i := 0; i < n; i++ {
		c := concepts[rnd.Intn(len(concepts))]
		cents := -int64(rnd.Intn(20000) + 100)
		if c.concept == "NOMINA" {
			cents = 250000
		}
		balance += cents
		out = append(out, Row{
			Date:    day,
			Concept: fmt.Sprintf("%s %d", c.concept, i),
			Notes:   c.notes,
			Cents:   cents,
			Balance: balance,
		})
		day = day.AddDate(0, 0, rnd.Intn(3)+1)
	}
	return out
}

// CaixaBankCSV renders rows as a newest-first CaixaBank export.
func CaixaBankCSV(rows []Row) []byte {
	var b strings.Builder
	b.WriteString("Data;Data valor;Moviment;Més dades;Import;Saldo\n")
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		d := r.Date.Format("02/01/2006")
		fmt.Fprintf(&b, "%s;%s;%s;%s;%s;%s\n", d, d, r.Concept, r.Notes, euros(r.Cents), euros(r.Balance))
	}
	return []byte(b.String())
}

// euros formats cents the way Spanish banks do: "-1.234,56".
func euros(cents int64) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	whole := fmt.Sprintf("%d", cents/100)
	var grouped []string
	for len(whole) > 3 {
		grouped = append([]string{whole[len(whole)-3:]}, grouped...)
		whole = whole[:len(whole)-3]
	}
	grouped = append([]string{whole}, grouped...)
	return fmt.Sprintf("%s%s,%02d", sign, strings.Join(grouped, "."), cents%100)
}
