package hubclient

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/netip"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v2"

	"github.com/bcnelson/hub-acl-manager/internal/accesslist"
	"github.com/bcnelson/hub-acl-manager/internal/domain"
)

// FileClient keeps the access lists of all hubs in one YAML file.
// It stands in for a hub's management interface in development and tests.
type FileClient struct {
	filePath string
	mu       sync.RWMutex
}

// Ensure FileClient implements AccessListClient.
var _ AccessListClient = (*FileClient)(nil)

// fileDocument is the on-disk layout.
type fileDocument struct {
	Hubs map[string][]fileRule `yaml:"hubs"`
}

// fileRule is an access rule as the hub sees it: dotted-quad addresses and
// a free-form note.
type fileRule struct {
	Active        bool   `yaml:"active"`
	Priority      uint32 `yaml:"priority"`
	SrcAddress    string `yaml:"src_address,omitempty"`
	SrcMask       string `yaml:"src_mask,omitempty"`
	DestAddress   string `yaml:"dest_address,omitempty"`
	DestMask      string `yaml:"dest_mask,omitempty"`
	Protocol      uint8  `yaml:"protocol,omitempty"`
	DestPortStart uint16 `yaml:"dest_port_start,omitempty"`
	DestPortEnd   uint16 `yaml:"dest_port_end,omitempty"`
	Discard       bool   `yaml:"discard"`
	Note          string `yaml:"note"`
}

// NewFileClient creates a client backed by filePath. The file is created on
// the first write.
func NewFileClient(filePath string) *FileClient {
	return &FileClient{filePath: filePath}
}

// FetchAccessList returns the rules stored for hubName. An unknown hub has
// an empty access list.
func (f *FileClient) FetchAccessList(ctx context.Context, hubName string) ([]domain.AccessRule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	doc, err := f.load()
	if err != nil {
		return nil, err
	}

	stored := doc.Hubs[hubName]
	rules := make([]domain.AccessRule, 0, len(stored))
	for i, fr := range stored {
		rule, err := fr.toDomain()
		if err != nil {
			return nil, fmt.Errorf("hub %s rule %d: %w", hubName, i, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// SetAccessList replaces the access list of hubName.
func (f *FileClient) SetAccessList(ctx context.Context, hubName string, rules []domain.AccessRule) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}

	stored := make([]fileRule, 0, len(rules))
	for _, r := range rules {
		stored = append(stored, fromDomain(r))
	}
	doc.Hubs[hubName] = stored

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling access lists: %w", err)
	}
	if err := os.WriteFile(f.filePath, data, 0644); err != nil {
		return fmt.Errorf("writing access list file: %w", err)
	}

	log.Debug("access list written", "hub", hubName, "rules", len(rules), "file", f.filePath, "etag", generateETag(data)[:12])
	return nil
}

func (f *FileClient) load() (*fileDocument, error) {
	doc := &fileDocument{}
	data, err := os.ReadFile(f.filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading access list file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parsing access list file: %w", err)
	}
	if doc.Hubs == nil {
		doc.Hubs = make(map[string][]fileRule)
	}
	return doc, nil
}

func fromDomain(r domain.AccessRule) fileRule {
	return fileRule{
		Active:        r.Active,
		Priority:      r.Priority,
		SrcAddress:    formatAddr(r.SrcAddress),
		SrcMask:       formatAddr(r.SrcMask),
		DestAddress:   formatAddr(r.DestAddress),
		DestMask:      formatAddr(r.DestMask),
		Protocol:      r.Protocol,
		DestPortStart: r.DestPortStart,
		DestPortEnd:   r.DestPortEnd,
		Discard:       r.Discard,
		Note:          r.Note,
	}
}

func (fr fileRule) toDomain() (domain.AccessRule, error) {
	rule := domain.AccessRule{
		Active:        fr.Active,
		Priority:      fr.Priority,
		Protocol:      fr.Protocol,
		DestPortStart: fr.DestPortStart,
		DestPortEnd:   fr.DestPortEnd,
		Discard:       fr.Discard,
		Note:          fr.Note,
	}
	var err error
	if rule.SrcAddress, err = parseAddr(fr.SrcAddress); err != nil {
		return rule, err
	}
	if rule.SrcMask, err = parseAddr(fr.SrcMask); err != nil {
		return rule, err
	}
	if rule.DestAddress, err = parseAddr(fr.DestAddress); err != nil {
		return rule, err
	}
	if rule.DestMask, err = parseAddr(fr.DestMask); err != nil {
		return rule, err
	}
	return rule, nil
}

// formatAddr renders the zero address as an empty field.
func formatAddr(addr netip.Addr) string {
	if !addr.IsValid() {
		return ""
	}
	return addr.String()
}

func parseAddr(s string) (netip.Addr, error) {
	if s == "" {
		return netip.Addr{}, nil
	}
	return accesslist.ParseIPv4(s)
}

// generateETag creates an ETag from the document bytes.
func generateETag(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
