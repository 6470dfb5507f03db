package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// isoLocal matches the zone-less timestamps applicant records carry
const isoLocal = "2006-01-02T15:04:05.000000"

var (
	firstNames = []string{"Jane", "John", "Maria", "Wei", "Aisha", "Lucas", "Priya", "Omar", "Elena", "Kenji"}
	lastNames  = []string{"Doe", "Santos", "Chen", "Okafor", "Silva", "Patel", "Haddad", "Novak", "Tanaka", "Reyes"}
	streets    = []string{"Main St", "Oak Ave", "Pine Rd", "Maple Dr", "Cedar Ln", "Elm St"}
	cities     = []string{"Springfield", "Riverton", "Lakeside", "Fairview", "Georgetown"}
	companies  = []string{"Acme Corp", "Globex", "Initech", "Umbrella Ltd", "Stark Industries", "Wayne Enterprises"}
	jobs       = []string{"Engineer", "Accountant", "Nurse", "Teacher", "Designer", "Sales Manager"}
	banks      = []string{"First National", "Harbor Bank", "Summit Credit Union", "Metro Savings"}
)

func pick[T any](items []T) T {
	return items[rand.IntN(len(items))]
}

func address() string {
	return fmt.Sprintf("%d %s, %s", rand.IntN(9000)+100, pick(streets), pick(cities))
}

func phone() string {
	return fmt.Sprintf("+1-%03d-%03d-%04d", rand.IntN(800)+200, rand.IntN(1000), rand.IntN(10000))
}

func money(lo, hi float64) float64 {
	return float64(int((lo+rand.Float64()*(hi-lo))*100)) / 100
}

func randomTime(back time.Duration) time.Time {
	return time.Now().Add(-time.Duration(rand.Int64N(int64(back))))
}

func generateProfile() map[string]interface{} {
	first, middle, last := pick(firstNames), pick(firstNames), pick(lastNames)
	return map[string]interface{}{
		"full_name":         first + " " + last,
		"first_name":        first,
		"last_name":         last,
		"middle_name":       middle,
		"birth_date":        randomTime(47*365*24*time.Hour).AddDate(-18, 0, 0).Format(time.DateOnly),
		"valid_id_type":     pick([]string{"Passport", "Driver's License", "National ID"}),
		"valid_id_number":   fmt.Sprintf("%03d-%02d-%04d", rand.IntN(900)+100, rand.IntN(100), rand.IntN(10000)),
		"self_picture":      "https://images.example.com/" + uuid.NewString() + ".jpg",
		"current_add":       address(),
		"permanent_add":     address(),
		"employment_status": pick([]string{"Employed", "Self-Employed", "Unemployed"}),
		"company_working":   pick(companies),
		"job_title":         pick(jobs),
		"income_source":     pick([]string{"Salary", "Business", "Investment", "Other"}),
		"payslip":           "/payslips/" + uuid.NewString() + ".pdf",
		"updated":           time.Now().Format(isoLocal),
	}
}

func generateApplication(profileID string) map[string]interface{} {
	return map[string]interface{}{
		"user_profile":   profileID,
		"date_submitted": randomTime(730 * 24 * time.Hour).Format(isoLocal),
		"app_status":     pick([]string{"Pending", "Approved", "Rejected"}),
		"mode":           pick([]string{"Online", "In-Person"}),
		"notes":          "Generated by seed_applicants",
		"apply_attempt":  rand.IntN(3) + 1,
		"updated":        time.Now().Format(isoLocal),
	}
}

func generateContact(profileID, name string) map[string]interface{} {
	return map[string]interface{}{
		"user_profile": profileID,
		"email":        strings.ToLower(strings.ReplaceAll(name, " ", ".")) + fmt.Sprintf("%d@example.com", rand.IntN(1000)),
		"phone_number": phone(),
		"tel_number":   phone(),
		"updated":      time.Now().Format(isoLocal),
	}
}

func generateBanking(applicationID string) map[string]interface{} {
	return map[string]interface{}{
		"application_id": applicationID,
		"bank_name":      pick(banks),
		"account_type":   pick([]string{"Savings", "Checking"}),
		"account_number": rand.IntN(90000000) + 10000000,
		"bank_status":    pick([]string{"Active", "Inactive"}),
	}
}

func generateFinancial(applicationID string) map[string]interface{} {
	return map[string]interface{}{
		"application_id": applicationID,
		"income":         money(20000, 200000),
		"net_assets":     money(50000, 500000),
		"net_debt":       money(0, 200000),
		"updated":        time.Now().Format(isoLocal),
	}
}

func generateCreditAccount(profileID string) map[string]interface{} {
	return map[string]interface{}{
		"user_id":      profileID,
		"credit_score": rand.IntN(551) + 300,
		"updated":      time.Now().Format(isoLocal),
	}
}

func generateTransaction(accountID string) map[string]interface{} {
	created := randomTime(365 * 24 * time.Hour)
	return map[string]interface{}{
		"account_id": accountID,
		"amount":     money(-2000, 2000),
		"created":    created.Format(isoLocal),
		"updated":    created.Format(isoLocal),
	}
}

type batchResult struct {
	Success bool                   `json:"success"`
	Item    map[string]interface{} `json:"item"`
	Fields  []struct {
		Field  string `json:"field"`
		Reason string `json:"reason"`
	} `json:"fields"`
}

type batchResponse struct {
	CreatedCount int           `json:"created_count"`
	FailedCount  int           `json:"failed_count"`
	Results      []batchResult `json:"results"`
}

// seeder posts documents through the batch endpoint and tracks totals
type seeder struct {
	baseURL string
	client  *http.Client
	created map[string]int
	failed  map[string]int
}

// create posts docs to collection and returns the generated ids, "" where a
// document was rejected.
func (s *seeder) create(collection string, docs []map[string]interface{}) ([]string, error) {
	body, err := json.Marshal(map[string]interface{}{"documents": docs})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", collection, err)
	}

	resp, err := s.client.Post(s.baseURL+"/collections/"+collection+"/batch", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusBadRequest {
		return nil, fmt.Errorf("unexpected status code for %s: %d", collection, resp.StatusCode)
	}

	var out batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", collection, err)
	}
	if len(out.Results) != len(docs) {
		return nil, fmt.Errorf("%s: expected %d results, got %d", collection, len(docs), len(out.Results))
	}

	s.created[collection] += out.CreatedCount
	s.failed[collection] += out.FailedCount

	ids := make([]string, len(out.Results))
	for i, r := range out.Results {
		if !r.Success {
			fmt.Printf("Rejected %s document %d: %v\n", collection, i, r.Fields)
			continue
		}
		ids[i], _ = r.Item["_id"].(string)
	}
	return ids, nil
}

func (s *seeder) seed(n, transactions int) error {
	profiles := make([]map[string]interface{}, n)
	for i := range profiles {
		profiles[i] = generateProfile()
	}
	profileIDs, err := s.create("profiles", profiles)
	if err != nil {
		return err
	}

	var applications, contacts, accounts []map[string]interface{}
	for i, id := range profileIDs {
		if id == "" {
			continue
		}
		applications = append(applications, generateApplication(id))
		contacts = append(contacts, generateContact(id, profiles[i]["full_name"].(string)))
		// not every applicant has a credit account
		if rand.IntN(2) == 0 {
			accounts = append(accounts, generateCreditAccount(id))
		}
	}

	applicationIDs, err := s.create("applications", applications)
	if err != nil {
		return err
	}
	if _, err := s.create("contact", contacts); err != nil {
		return err
	}

	var banking, financial []map[string]interface{}
	for _, id := range applicationIDs {
		if id == "" {
			continue
		}
		banking = append(banking, generateBanking(id))
		financial = append(financial, generateFinancial(id))
	}
	if _, err := s.create("banking", banking); err != nil {
		return err
	}
	if _, err := s.create("financial", financial); err != nil {
		return err
	}

	if len(accounts) == 0 {
		return nil
	}
	accountIDs, err := s.create("credit-accounts", accounts)
	if err != nil {
		return err
	}

	var txns []map[string]interface{}
	for i := 0; i < transactions; i++ {
		if id := pick(accountIDs); id != "" {
			txns = append(txns, generateTransaction(id))
		}
	}
	if len(txns) == 0 {
		return nil
	}
	_, err = s.create("credit-transactions", txns)
	return err
}

func main() {
	var (
		count        = flag.Int("n", 100, "Number of applicants to generate (max 1000)")
		transactions = flag.Int("transactions", 20, "Number of credit transactions to generate")
		serverURL    = flag.String("url", "http://localhost:8080", "Server base URL")
	)
	flag.Parse()

	if *count <= 0 || *count > 1000 {
		fmt.Println("Error: -n must be between 1 and 1000")
		os.Exit(1)
	}
	if *transactions < 0 || *transactions > 1000 {
		fmt.Println("Error: -transactions must be between 0 and 1000")
		os.Exit(1)
	}

	s := &seeder{
		baseURL: strings.TrimRight(*serverURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
		created: make(map[string]int),
		failed:  make(map[string]int),
	}

	fmt.Printf("Seeding %d applicants and %d credit transactions into %s\n", *count, *transactions, s.baseURL)
	start := time.Now()

	err := s.seed(*count, *transactions)

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("SEED COMPLETE")
	fmt.Println(strings.Repeat("=", 60))
	failures := 0
	for _, coll := range []string{"profiles", "applications", "contact", "banking", "financial", "credit-accounts", "credit-transactions"} {
		fmt.Printf("%-20s created: %5d  rejected: %d\n", coll, s.created[coll], s.failed[coll])
		failures += s.failed[coll]
	}
	fmt.Printf("Total time:          %v\n", time.Since(start))

	if err != nil {
		fmt.Printf("\nError: %v\n", err)
		os.Exit(1)
	}
	if failures > 0 {
		fmt.Printf("\nWarning: %d documents were rejected\n", failures)
		os.Exit(1)
	}
}
