// Package network builds the company/insider node-link graph.
package network

import (
	"math"
	"strconv"

	"github.com/bighogz/insider-vibes/internal/models"
)

const (
	ColorCompany  = "#2563eb"
	ColorPurchase = "#16a34a"
	ColorSale     = "#dc2626"

	companySize = 30
	minNodeSize = 10
	maxNodeSize = 30

	minEdgeWeight = 1
	maxEdgeWeight = 10
)

type insider struct {
	name string
	role string
	net  float64
}

// Render rebuilds the graph for ticker from scratch. Same-role edges only
// group nodes visually.
func Render(ticker string, txs []models.Transaction) models.Graph {
	g := models.Graph{Ticker: ticker, Nodes: []models.Node{}, Edges: []models.Edge{}}
	if len(txs) == 0 {
		g.Empty = true
		g.Placeholder = "No insider transactions to graph for " + ticker
		return g
	}

	var order []*insider
	byName := make(map[string]*insider)
	for _, t := range txs {
		name := t.ReportingOwner.Name
		in, ok := byName[name]
		if !ok {
			in = &insider{name: name, role: t.ReportingOwner.Classification}
			byName[name] = in
			order = append(order, in)
		}
		in.net += t.NetValue
	}

	maxAbs := 0.0
	for _, in := range order {
		maxAbs = math.Max(maxAbs, math.Abs(in.net))
	}

	companyID := "company:" + ticker
	g.Nodes = append(g.Nodes, models.Node{
		ID:    companyID,
		Label: ticker,
		Kind:  models.NodeCompany,
		Color: ColorCompany,
		Size:  companySize,
	})
	ids := make([]string, len(order))
	for i, in := range order {
		ids[i] = "insider:" + strconv.Itoa(i)
		color := ColorPurchase
		if in.net < 0 {
			color = ColorSale
		}
		size := float64(minNodeSize)
		if maxAbs > 0 {
			size += (maxNodeSize - minNodeSize) * math.Abs(in.net) / maxAbs
		}
		g.Nodes = append(g.Nodes, models.Node{
			ID:       ids[i],
			Label:    in.name,
			Kind:     models.NodeInsider,
			Role:     in.role,
			NetValue: in.net,
			Color:    color,
			Size:     math.Round(size*10) / 10,
		})
		g.Edges = append(g.Edges, models.Edge{
			From:     companyID,
			To:       ids[i],
			Weight:   EdgeWeight(in.net),
			Directed: true,
		})
	}
	for i := range order {
		for j := i + 1; j < len(order); j++ {
			if order[i].role == order[j].role {
				g.Edges = append(g.Edges, models.Edge{
					From:   ids[i],
					To:     ids[j],
					Weight: minEdgeWeight,
					Dashed: true,
				})
			}
		}
	}
	return g
}

// EdgeWeight is |net| in millions, clamped to [1, 10].
func EdgeWeight(net float64) float64 {
	return math.Max(minEdgeWeight, math.Min(maxEdgeWeight, math.Abs(net)/1e6))
}
