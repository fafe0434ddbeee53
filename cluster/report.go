package cluster

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"TreeMPI/config"
	"TreeMPI/driver"
	merkletree "TreeMPI/merkleTree"
	"TreeMPI/message"
	"TreeMPI/protocol"
)

var ErrNotAttested = errors.New("report carries no attestation")

// Bit is the sum bit of one leaf.
type Bit struct {
	Rank int `yaml:"rank"`
	Bit  int `yaml:"bit"`
}

// Attestation commits to the transcript of a run. Digests and keys are hex.
type Attestation struct {
	Root      string `yaml:"root"`       // Merkle root over the transcript lines.
	Lines     int    `yaml:"lines"`      // Transcript length.
	Signature string `yaml:"signature"`  // BLS signature over the attested digest.
	PublicKey string `yaml:"public_key"` // Per-run verification key.
}

// Report is the outcome of one run.
type Report struct {
	ID        string           `yaml:"id"`
	Algorithm string           `yaml:"algorithm"`
	Size      int              `yaml:"size"`
	Transport string           `yaml:"transport"`
	Carry     string           `yaml:"carry,omitempty"`
	Input     []string         `yaml:"input"`          // Padded numbers, or the loaded values line.
	Echo      bool             `yaml:"echo,omitempty"` // Sort output starts with the values line.
	Bits      []Bit            `yaml:"bits,omitempty"` // Chain order, most significant first.
	Overflow  bool             `yaml:"overflow,omitempty"`
	Values    []int            `yaml:"values,omitempty"`
	Stats     []protocol.Stats `yaml:"stats"` // Indexed by rank.
	Elapsed   time.Duration    `yaml:"elapsed"`

	Attestation *Attestation `yaml:"attestation,omitempty"`
}

// Lines renders the program output: one "rank:bit" line per leaf and the
// overflow line for the adder, the sorted values for the sort.
func (r *Report) Lines() []string {
	var lines []string
	switch r.Algorithm {
	case config.AlgorithmAdder:
		for _, b := range r.Bits {
			lines = append(lines, driver.BitLine(b.Rank, b.Bit))
		}
		if r.Overflow {
			lines = append(lines, driver.OverflowLine)
		}
	case config.AlgorithmSort:
		if r.Echo {
			lines = append(lines, r.Input...)
		}
		for _, v := range r.Values {
			lines = append(lines, driver.ValueLine(v))
		}
	}
	return lines
}

func (r *Report) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, line := range r.Lines() {
		n, err := fmt.Fprintln(w, line)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Sum returns the sum bits as a binary string.
func (r *Report) Sum() string {
	var sb strings.Builder
	for _, b := range r.Bits {
		sb.WriteByte(byte('0' + b.Bit))
	}
	return sb.String()
}

// transcript is what gets attested: the header, the input and the output.
func (r *Report) transcript() [][]byte {
	lines := [][]byte{[]byte(fmt.Sprintf("%s %s size=%d", r.ID, r.Algorithm, r.Size))}
	for _, l := range r.Input {
		lines = append(lines, []byte("< "+l))
	}
	for _, l := range r.Lines() {
		lines = append(lines, []byte("> "+l))
	}
	return lines
}

type attested struct {
	ID    string
	Root  []byte
	Lines int
}

// Attest commits to the transcript and signs the commitment.
func (r *Report) Attest(signer *message.Signer) error {
	mt, err := merkletree.MakeMerkleTree(r.transcript())
	if err != nil {
		return err
	}
	digest, err := message.ConvertStructToHashBytes(attested{ID: r.ID, Root: mt.Root(), Lines: mt.Len()})
	if err != nil {
		return err
	}
	sig, err := signer.Sign(digest)
	if err != nil {
		return fmt.Errorf("sign report: %w", err)
	}
	pub, err := signer.PublicKey()
	if err != nil {
		return err
	}
	r.Attestation = &Attestation{
		Root:      hex.EncodeToString(mt.Root()),
		Lines:     mt.Len(),
		Signature: hex.EncodeToString(sig),
		PublicKey: hex.EncodeToString(pub),
	}
	return nil
}

// Verify recomputes the transcript commitment and checks its signature.
func (r *Report) Verify() error {
	a := r.Attestation
	if a == nil {
		return ErrNotAttested
	}
	root, err := hex.DecodeString(a.Root)
	if err != nil {
		return fmt.Errorf("root: %w", err)
	}
	sig, err := hex.DecodeString(a.Signature)
	if err != nil {
		return fmt.Errorf("signature: %w", err)
	}
	pub, err := hex.DecodeString(a.PublicKey)
	if err != nil {
		return fmt.Errorf("public key: %w", err)
	}

	mt, err := merkletree.MakeMerkleTree(r.transcript())
	if err != nil {
		return err
	}
	if mt.Len() != a.Lines || !bytes.Equal(mt.Root(), root) {
		return fmt.Errorf("transcript does not match attested root %s", a.Root)
	}
	digest, err := message.ConvertStructToHashBytes(attested{ID: r.ID, Root: root, Lines: a.Lines})
	if err != nil {
		return err
	}
	return message.SignatureVerify(digest, sig, pub)
}

// Proof returns transcript line i with its merkle branch.
func (r *Report) Proof(i int) ([]byte, [][]byte, error) {
	lines := r.transcript()
	mt, err := merkletree.MakeMerkleTree(lines)
	if err != nil {
		return nil, nil, err
	}
	branch, err := mt.GetMerkleBranch(i)
	if err != nil {
		return nil, nil, err
	}
	return lines[i], branch, nil
}

// VerifyLine checks that line sits at position i of the attested transcript.
func (r *Report) VerifyLine(line []byte, branch [][]byte, i int) bool {
	if r.Attestation == nil {
		return false
	}
	root, err := hex.DecodeString(r.Attestation.Root)
	if err != nil {
		return false
	}
	return merkletree.MerkleTreeVerify(line, root, branch, i)
}

func (r *Report) Save(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	r := &Report{}
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return r, nil
}
