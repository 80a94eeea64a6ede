// Package sample generates demonstration datasets with known quality issues.
package sample

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"sort"
	"strconv"
	"time"
)

// Dataset is a generated table in string form; an empty cell is missing.
type Dataset struct {
	Name   string
	Header []string
	Rows   [][]string
}

type generator struct {
	describe string
	build    func(r *rand.Rand) Dataset
}

var generators = map[string]generator{
	"basic":    {"Simple dataset with common issues", basic},
	"customer": {"Customer data with various types", customer},
	"sales":    {"Time series sales data", sales},
}

// Names lists the available datasets in a stable order.
func Names() []string {
	out := make([]string, 0, len(generators))
	for n := range generators {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Describe returns a one-line description of the named dataset.
func Describe(name string) string { return generators[name].describe }

// Generate builds the named dataset deterministically from seed.
func Generate(name string, seed uint64) (Dataset, error) {
	g, ok := generators[name]
	if !ok {
		return Dataset{}, fmt.Errorf("unknown sample %q (available: %v)", name, Names())
	}
	d := g.build(rand.New(rand.NewPCG(seed, seed)))
	d.Name = name
	return d, nil
}

// WriteCSV writes d with a header row.
func (d Dataset) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(d.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(d.Rows); err != nil {
		return fmt.Errorf("write %s: %w", d.Name, err)
	}
	return nil
}

func basic(r *rand.Rand) Dataset {
	const n = 100
	names := repeat([]string{"John", "Jane", "Bob", "", "Alice", "Charlie", "David", "Eve"}, 12,
		"Frank", "Grace", "Henry", "Iris")
	ages := repeat([]string{"25", "30", "35", "", "28", "45", "", "32"}, 12, "27", "38", "", "29")
	salaries := repeat([]string{"50000", "60000", "", "80000", "55000", "", "70000", "65000"}, 12,
		"52000", "", "68000", "58000")
	depts := repeat([]string{"IT", "HR", "IT", "Finance", "HR", "IT", "Finance", "Marketing"}, 12,
		"IT", "HR", "Finance", "Marketing")
	active := repeat([]string{"True", "False", "True", "True", "True", "False", "True", "True"}, 12,
		"True", "True", "False", "True")

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	d := Dataset{Header: []string{"ID", "Name", "Age", "Salary", "Department", "Join_Date", "Performance_Score", "Active"}}
	for i := 0; i < n; i++ {
		d.Rows = append(d.Rows, []string{
			strconv.Itoa(i + 1), names[i], ages[i], salaries[i], depts[i],
			start.AddDate(0, 0, 30*i).Format(time.DateOnly),
			float(uniform(r, 60, 100)),
			active[i],
		})
	}
	for _, i := range []int{0, 5, 10} {
		d.Rows = append(d.Rows, append([]string(nil), d.Rows[i]...))
	}
	return d
}

func customer(r *rand.Rand) Dataset {
	const n = 200
	firstNames := []string{"John", "Jane", "Bob", "Alice", "Charlie", "David", ""}
	lastNames := []string{"Smith", "Johnson", "Williams", "Brown", "Jones", ""}
	countries := []string{"USA", "Canada", "UK", "Australia", ""}
	countryWeights := []float64{0.5, 0.2, 0.15, 0.1, 0.05}
	start := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)

	d := Dataset{Header: []string{
		"Customer_ID", "First_Name", "Last_Name", "Email", "Age", "Annual_Income", "Credit_Score",
		"Account_Balance", "Num_Purchases", "Member_Since", "Country", "Premium_Member",
		"Transaction_ID", "Company",
	}}
	for i := 0; i < n; i++ {
		email := fmt.Sprintf("customer%d@example.com", i)
		if i%10 == 0 {
			email = ""
		}
		d.Rows = append(d.Rows, []string{
			fmt.Sprintf("CUST%05d", i+1),
			firstNames[r.IntN(len(firstNames))],
			lastNames[r.IntN(len(lastNames))],
			email,
			strconv.Itoa(18 + r.IntN(62)),
			float(r.NormFloat64()*20000 + 60000),
			strconv.Itoa(300 + r.IntN(550)),
			float(uniform(r, -1000, 50000)),
			strconv.Itoa(poisson(r, 5)),
			start.AddDate(0, 0, i).Format(time.DateOnly),
			countries[weighted(r, countryWeights)],
			strconv.FormatBool(r.Float64() < 0.3),
			fmt.Sprintf("TXN%010d", i),
			"ACME Corp",
		})
	}
	return d
}

func sales(r *rand.Rand) Dataset {
	const n = 365
	products := []string{"Product_A", "Product_B", "Product_C", "Product_D"}
	regions := []string{"North", "South", "East", "West"}
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	d := Dataset{Header: []string{
		"Date", "Product", "Region", "Sales_Amount", "Quantity", "Discount",
		"Customer_Satisfaction", "Shipping_Cost", "Profit_Margin",
	}}
	for i := 0; i < n; i++ {
		day := start.AddDate(0, 0, i)
		satisfaction := float(uniform(r, 1, 5))
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			satisfaction = ""
		}
		d.Rows = append(d.Rows, []string{
			day.Format(time.DateOnly),
			products[r.IntN(len(products))],
			regions[r.IntN(len(regions))],
			float(uniform(r, 100, 10000)),
			strconv.Itoa(1 + r.IntN(99)),
			float(uniform(r, 0, 0.3)),
			satisfaction,
			float(uniform(r, 5, 50)),
			float(uniform(r, 0.1, 0.4)),
		})
	}
	return d
}

func repeat(pattern []string, times int, tail ...string) []string {
	out := make([]string, 0, len(pattern)*times+len(tail))
	for i := 0; i < times; i++ {
		out = append(out, pattern...)
	}
	return append(out, tail...)
}

func uniform(r *rand.Rand, lo, hi float64) float64 { return lo + r.Float64()*(hi-lo) }

func float(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }

// poisson uses Knuth's multiplication method; fine for small lambda.
func poisson(r *rand.Rand, lambda float64) int {
	limit := math.Exp(-lambda)
	k, p := 0, 1.0
	for {
		p *= r.Float64()
		if p <= limit {
			return k
		}
		k++
	}
}

func weighted(r *rand.Rand, weights []float64) int {
	x := r.Float64()
	for i, w := range weights {
		if x < w {
			return i
		}
		x -= w
	}
	return len(weights) - 1
}
