package portfolio

import (
	"strings"
	"sync"
)

// Holding is one position in a client portfolio.
type Holding struct {
	Asset      string
	Ticker     string
	Allocation int
	Value      float64
	CostBasis  float64
}

// Transaction is one account movement.
type Transaction struct {
	Date        string
	Type        string
	Amount      float64
	Description string
}

// Client is one advisory client's financial profile.
type Client struct {
	ID                  string
	Name                string
	Email               string
	Phone               string
	Address             string
	Status              string
	AccountType         string
	AccountName         string
	PortfolioValue      float64
	RiskProfile         string
	RiskScore           int
	Advisor             string
	CreatedDate         string
	LastReview          string
	NextReview          string
	Holdings            []Holding
	YTDReturn           float64
	InceptionReturn     float64
	ComplianceStatus    string
	ComplianceReason    string
	KYCStatus           string
	KYCExpiry           string
	AMLFlag             bool
	TradingRestrictions []string
	RecentTransactions  []Transaction
}

// Compliant reports whether the client passes compliance checks.
func (c *Client) Compliant() bool {
	return c.ComplianceStatus == "clear" && !c.AMLFlag
}

// Store is the in-memory client book. Reads dominate; contact
// updates take the write lock.
type Store struct {
	mu      sync.RWMutex
	order   []string
	clients map[string]*Client
}

// NewStore returns a store seeded with the demo client book.
func NewStore() *Store {
	s := &Store{clients: make(map[string]*Client)}
	for _, c := range seedClients() {
		s.order = append(s.order, c.ID)
		s.clients[c.ID] = c
	}
	return s
}

// Find looks a client up by ID, exact name, or partial name,
// case-insensitively.
func (s *Store) Find(identifier string) (*Client, bool) {
	needle := strings.ToLower(strings.TrimSpace(identifier))
	if needle == "" {
		return nil, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		c := s.clients[id]
		if strings.ToLower(c.ID) == needle || strings.ToLower(c.Name) == needle {
			return c.clone(), true
		}
	}
	for _, id := range s.order {
		c := s.clients[id]
		if strings.Contains(strings.ToLower(c.Name), needle) {
			return c.clone(), true
		}
	}
	return nil, false
}

// List returns every client in book order.
func (s *Store) List() []*Client {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Client, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.clients[id].clone())
	}
	return out
}

// Len returns the number of clients in the book.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// UpdateContact changes one contact field and returns the previous
// value. Only phone, email, and address are updatable.
func (s *Store) UpdateContact(id, field, value string) (old string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, found := s.clients[id]
	if !found {
		return "", false
	}
	switch field {
	case "phone":
		old, c.Phone = c.Phone, value
	case "email":
		old, c.Email = c.Email, value
	case "address":
		old, c.Address = c.Address, value
	default:
		return "", false
	}
	return old, true
}

// clone copies the client so callers never hold store-internal
// pointers across the lock.
func (c *Client) clone() *Client {
	out := *c
	out.Holdings = append([]Holding(nil), c.Holdings...)
	out.TradingRestrictions = append([]string(nil), c.TradingRestrictions...)
	out.RecentTransactions = append([]Transaction(nil), c.RecentTransactions...)
	return &out
}

func seedClients() []*Client {
	return []*Client{
		{
			ID:              "CLT001",
			Name:            "Marcus Thompson",
			Email:           "marcus.thompson@email.com",
			Phone:           "555-0101",
			Status:          "Active",
			AccountType:     "High Net Worth",
			AccountName:     "Thompson Family Trust",
			PortfolioValue:  2400000,
			RiskProfile:     "Moderate",
			RiskScore:       45,
			Advisor:         "Kundan Kolhe",
			CreatedDate:     "2019-08-01",
			LastReview:      "2024-11-15",
			NextReview:      "2025-02-15",
			YTDReturn:       9.8,
			InceptionReturn: 47.2,
			Holdings: []Holding{
				{Asset: "US Large Cap Equities", Ticker: "VTI", Allocation: 25, Value: 600000, CostBasis: 480000},
				{Asset: "US Small Cap Equities", Ticker: "VB", Allocation: 10, Value: 240000, CostBasis: 200000},
				{Asset: "International Developed", Ticker: "VEA", Allocation: 15, Value: 360000, CostBasis: 340000},
				{Asset: "Emerging Markets", Ticker: "VWO", Allocation: 10, Value: 240000, CostBasis: 260000},
				{Asset: "Investment Grade Bonds", Ticker: "BND", Allocation: 20, Value: 480000, CostBasis: 500000},
				{Asset: "Municipal Bonds", Ticker: "VTEB", Allocation: 10, Value: 240000, CostBasis: 230000},
				{Asset: "Real Estate", Ticker: "VNQ", Allocation: 5, Value: 120000, CostBasis: 100000},
				{Asset: "Cash & Equivalents", Ticker: "VMFXX", Allocation: 5, Value: 120000, CostBasis: 120000},
			},
			ComplianceStatus: "clear",
			KYCStatus:        "verified",
			KYCExpiry:        "2026-08-01",
			RecentTransactions: []Transaction{
				{Date: "2024-11-01", Type: "Dividend Reinvestment", Amount: 4500, Description: "Q3 dividends reinvested"},
				{Date: "2024-10-15", Type: "Rebalance", Amount: 0, Description: "Quarterly rebalance - reduced equity exposure"},
				{Date: "2024-09-30", Type: "Withdrawal", Amount: -25000, Description: "Quarterly distribution"},
			},
		},
		{
			ID:              "CLT002",
			Name:            "Elena Rodriguez",
			Email:           "elena.rodriguez@email.com",
			Phone:           "555-0102",
			Status:          "Active",
			AccountType:     "Retirement",
			AccountName:     "Rodriguez Retirement Fund",
			PortfolioValue:  850000,
			RiskProfile:     "Conservative",
			RiskScore:       25,
			Advisor:         "Kundan Kolhe",
			CreatedDate:     "2020-03-15",
			LastReview:      "2024-10-20",
			NextReview:      "2025-01-20",
			YTDReturn:       5.6,
			InceptionReturn: 28.4,
			Holdings: []Holding{
				{Asset: "Investment Grade Bonds", Ticker: "BND", Allocation: 30, Value: 255000, CostBasis: 260000},
				{Asset: "US Large Cap Equities", Ticker: "VTI", Allocation: 20, Value: 170000, CostBasis: 140000},
				{Asset: "Dividend Growth", Ticker: "VIG", Allocation: 15, Value: 127500, CostBasis: 110000},
				{Asset: "Treasury Inflation Protected", Ticker: "VTIP", Allocation: 15, Value: 127500, CostBasis: 125000},
				{Asset: "Short-Term Bonds", Ticker: "BSV", Allocation: 10, Value: 85000, CostBasis: 85000},
				{Asset: "Cash & Equivalents", Ticker: "VMFXX", Allocation: 10, Value: 85000, CostBasis: 85000},
			},
			ComplianceStatus: "clear",
			KYCStatus:        "verified",
			KYCExpiry:        "2025-03-15",
			RecentTransactions: []Transaction{
				{Date: "2024-11-15", Type: "Distribution", Amount: -5500, Description: "Monthly income distribution"},
				{Date: "2024-10-15", Type: "Rebalance", Amount: 0, Description: "Shifted to more conservative allocation"},
				{Date: "2024-10-01", Type: "Distribution", Amount: -5500, Description: "Monthly income distribution"},
			},
		},
		{
			ID:              "CLT003",
			Name:            "James Chen",
			Email:           "jchen@chenindustries.com",
			Phone:           "555-0103",
			Status:          "Active",
			AccountType:     "Business Owner",
			AccountName:     "Chen Industries Holdings",
			PortfolioValue:  1200000,
			RiskProfile:     "Aggressive",
			RiskScore:       72,
			Advisor:         "Kundan Kolhe",
			CreatedDate:     "2021-06-01",
			LastReview:      "2024-09-15",
			NextReview:      "2025-03-15",
			YTDReturn:       18.5,
			InceptionReturn: 65.3,
			Holdings: []Holding{
				{Asset: "Company Stock (CHEN)", Ticker: "CHEN", Allocation: 35, Value: 420000, CostBasis: 50000},
				{Asset: "US Large Cap Growth", Ticker: "VUG", Allocation: 20, Value: 240000, CostBasis: 180000},
				{Asset: "US Small Cap", Ticker: "VB", Allocation: 15, Value: 180000, CostBasis: 150000},
				{Asset: "International Developed", Ticker: "VEA", Allocation: 10, Value: 120000, CostBasis: 100000},
				{Asset: "Emerging Markets", Ticker: "VWO", Allocation: 10, Value: 120000, CostBasis: 95000},
				{Asset: "Cash & Equivalents", Ticker: "VMFXX", Allocation: 10, Value: 120000, CostBasis: 120000},
			},
			ComplianceStatus:    "clear",
			KYCStatus:           "verified",
			KYCExpiry:           "2026-06-01",
			TradingRestrictions: []string{"Company stock subject to Rule 144 - 90 day holding period"},
			RecentTransactions: []Transaction{
				{Date: "2024-11-20", Type: "Stock Sale", Amount: 50000, Description: "Partial CHEN stock sale under Rule 144"},
				{Date: "2024-10-01", Type: "Deposit", Amount: 100000, Description: "Business profit contribution"},
				{Date: "2024-08-15", Type: "Tax Payment", Amount: -35000, Description: "Estimated quarterly tax"},
			},
		},
		{
			ID:              "CLT004",
			Name:            "Priya Patel",
			Email:           "priya.patel@email.com",
			Phone:           "555-0104",
			Status:          "Active",
			AccountType:     "Growth",
			AccountName:     "Patel Investment Account",
			PortfolioValue:  150000,
			RiskProfile:     "Moderate-Aggressive",
			RiskScore:       62,
			Advisor:         "Kundan Kolhe",
			CreatedDate:     "2024-01-15",
			LastReview:      "2024-07-15",
			NextReview:      "2025-01-15",
			YTDReturn:       12.3,
			InceptionReturn: 12.3,
			Holdings: []Holding{
				{Asset: "US Total Market", Ticker: "VTI", Allocation: 40, Value: 60000, CostBasis: 55000},
				{Asset: "International Developed", Ticker: "VEA", Allocation: 20, Value: 30000, CostBasis: 28000},
				{Asset: "Emerging Markets", Ticker: "VWO", Allocation: 15, Value: 22500, CostBasis: 20000},
				{Asset: "US Small Cap Growth", Ticker: "VBK", Allocation: 15, Value: 22500, CostBasis: 21000},
				{Asset: "Cash & Equivalents", Ticker: "VMFXX", Allocation: 10, Value: 15000, CostBasis: 15000},
			},
			ComplianceStatus: "clear",
			KYCStatus:        "verified",
			KYCExpiry:        "2027-01-15",
			RecentTransactions: []Transaction{
				{Date: "2024-11-01", Type: "Deposit", Amount: 5000, Description: "Monthly contribution"},
				{Date: "2024-10-01", Type: "Deposit", Amount: 5000, Description: "Monthly contribution"},
				{Date: "2024-09-01", Type: "Deposit", Amount: 5000, Description: "Monthly contribution"},
			},
		},
	}
}
