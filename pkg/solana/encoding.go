package solana

import (
	"bytes"
	"crypto/ed25519"
	"io"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/wallet-server/pkg/solana/shortvec"
)

// Versioned messages set the high bit of the first byte. Legacy messages
// start with the signature count, which is always below 128.
const versionPrefixMask = 0x80

type encoder struct {
	bytes.Buffer
}

func (e *encoder) writeLen(n int) {
	_, _ = shortvec.EncodeLen(&e.Buffer, n)
}

// writeVec writes a length prefixed byte vector.
func (e *encoder) writeVec(b []byte) {
	e.writeLen(len(b))
	e.Write(b)
}

// decoder reads wire values, keeping the first failure and turning every
// later read into a no-op.
type decoder struct {
	r   *bytes.Reader
	err error
}

func newDecoder(b []byte) *decoder {
	return &decoder{r: bytes.NewReader(b)}
}

func (d *decoder) fail(err error, what string) {
	if d.err == nil {
		d.err = errors.Wrapf(err, "failed to read %s", what)
	}
}

func (d *decoder) readByte(what string) byte {
	if d.err != nil {
		return 0
	}
	b, err := d.r.ReadByte()
	if err != nil {
		d.fail(err, what)
	}
	return b
}

func (d *decoder) readLen(what string) int {
	if d.err != nil {
		return 0
	}
	n, err := shortvec.DecodeLen(d.r)
	if err != nil {
		d.fail(err, what)
	}
	return n
}

func (d *decoder) readFull(dst []byte, what string) {
	if d.err != nil {
		return
	}
	if _, err := io.ReadFull(d.r, dst); err != nil {
		d.fail(err, what)
	}
}

func (d *decoder) readVec(what string) []byte {
	n := d.readLen(what + " length")
	if d.err != nil {
		return nil
	}
	if n > d.r.Len() {
		d.fail(io.ErrUnexpectedEOF, what)
		return nil
	}
	b := make([]byte, n)
	d.readFull(b, what)
	return b
}

func (d *decoder) readKey(what string) ed25519.PublicKey {
	key := make(ed25519.PublicKey, ed25519.PublicKeySize)
	d.readFull(key, what)
	return key
}

func (t Transaction) Marshal() []byte {
	var e encoder
	e.writeLen(len(t.Signatures))
	for _, sig := range t.Signatures {
		e.Write(sig[:])
	}
	e.Write(t.Message.Marshal())
	return e.Bytes()
}

// ToBase58 returns the base58 encoding of the first signature, which is the
// transaction id on chain.
func (t Transaction) ToBase58() string {
	if len(t.Signatures) == 0 {
		return ""
	}
	return base58.Encode(t.Signatures[0][:])
}

func (t *Transaction) Unmarshal(b []byte) error {
	d := newDecoder(b)

	count := d.readLen("signature count")
	if d.err == nil && count*ed25519.SignatureSize > d.r.Len() {
		d.fail(io.ErrUnexpectedEOF, "signatures")
	}
	sigs := make([]Signature, count)
	for i := range sigs {
		d.readFull(sigs[i][:], "signature")
	}
	if d.err != nil {
		return d.err
	}

	var m Message
	if err := m.Unmarshal(b[len(b)-d.r.Len():]); err != nil {
		return err
	}
	if len(sigs) != int(m.Header.NumSignatures) {
		return errors.Errorf("signature count mismatch: %d != %d", len(sigs), m.Header.NumSignatures)
	}

	t.Signatures = sigs
	t.Message = m
	return nil
}

func (m Message) Marshal() []byte {
	var e encoder

	if m.version != MessageVersionLegacy {
		e.WriteByte(versionPrefixMask | byte(m.version-1))
	}

	e.Write([]byte{m.Header.NumSignatures, m.Header.NumReadonlySigned, m.Header.NumReadOnly})

	e.writeLen(len(m.Accounts))
	for _, account := range m.Accounts {
		e.Write(account)
	}

	e.Write(m.RecentBlockhash[:])

	e.writeLen(len(m.Instructions))
	for _, instruction := range m.Instructions {
		e.WriteByte(instruction.ProgramIndex)
		e.writeVec(instruction.Accounts)
		e.writeVec(instruction.Data)
	}

	if m.version == MessageVersionLegacy {
		return e.Bytes()
	}

	e.writeLen(len(m.AddressTableLookups))
	for _, lookup := range m.AddressTableLookups {
		e.Write(lookup.PublicKey)
		e.writeVec(lookup.WritableIndexes)
		e.writeVec(lookup.ReadonlyIndexes)
	}

	return e.Bytes()
}

func (m *Message) Unmarshal(b []byte) error {
	if len(b) == 0 {
		return errors.New("empty message")
	}

	var decoded Message
	d := newDecoder(b)

	decoded.version = MessageVersionLegacy
	if b[0]&versionPrefixMask != 0 {
		decoded.version = MessageVersion(b[0]&^versionPrefixMask) + 1
		if decoded.version != MessageVersion0 {
			return errors.Errorf("unsupported message version: %d", b[0]&^versionPrefixMask)
		}
		d.readByte("version")
	}

	decoded.Header = Header{
		NumSignatures:     d.readByte("header"),
		NumReadonlySigned: d.readByte("header"),
		NumReadOnly:       d.readByte("header"),
	}

	accountCount := d.readLen("account count")
	if d.err == nil && accountCount < int(decoded.Header.NumSignatures) {
		return errors.Errorf("account count %d is below signature count %d", accountCount, decoded.Header.NumSignatures)
	}
	if d.err == nil && accountCount*ed25519.PublicKeySize > d.r.Len() {
		d.fail(io.ErrUnexpectedEOF, "accounts")
	}
	for i := 0; d.err == nil && i < accountCount; i++ {
		decoded.Accounts = append(decoded.Accounts, d.readKey("account"))
	}

	d.readFull(decoded.RecentBlockhash[:], "recent blockhash")

	instructionCount := d.readLen("instruction count")
	for i := 0; d.err == nil && i < instructionCount; i++ {
		c := CompiledInstruction{
			ProgramIndex: d.readByte("program index"),
			Accounts:     d.readVec("instruction accounts"),
			Data:         d.readVec("instruction data"),
		}
		if d.err != nil {
			break
		}

		if int(c.ProgramIndex) >= len(decoded.Accounts) {
			return errors.Errorf("instruction %d program index %d out of range", i, c.ProgramIndex)
		}
		// Versioned messages may reference lookup table accounts, which can
		// only be range checked once the tables are resolved.
		if decoded.version == MessageVersionLegacy {
			for _, index := range c.Accounts {
				if int(index) >= len(decoded.Accounts) {
					return errors.Errorf("instruction %d account index %d out of range", i, index)
				}
			}
		}

		decoded.Instructions = append(decoded.Instructions, c)
	}

	if decoded.version != MessageVersionLegacy {
		lookupCount := d.readLen("address table lookup count")
		for i := 0; d.err == nil && i < lookupCount; i++ {
			decoded.AddressTableLookups = append(decoded.AddressTableLookups, MessageAddressTableLookup{
				PublicKey:       d.readKey("address table"),
				WritableIndexes: d.readVec("writable indexes"),
				ReadonlyIndexes: d.readVec("readonly indexes"),
			})
		}
	}

	if d.err != nil {
		return d.err
	}

	*m = decoded
	return nil
}

// DecompileInstructions expands the compiled instructions of a legacy message
// back into instructions with resolved account metas.
func (m Message) DecompileInstructions() ([]Instruction, error) {
	if m.version != MessageVersionLegacy {
		return nil, errors.New("cannot decompile versioned message without lookup tables")
	}

	meta := func(index byte) (AccountMeta, error) {
		if int(index) >= len(m.Accounts) {
			return AccountMeta{}, errors.Errorf("account index %d out of range", index)
		}
		return AccountMeta{
			PublicKey:  m.Accounts[index],
			IsSigner:   m.IsSigner(int(index)),
			IsWritable: m.IsWritable(int(index)),
		}, nil
	}

	instructions := make([]Instruction, 0, len(m.Instructions))
	for i, c := range m.Instructions {
		program, err := meta(c.ProgramIndex)
		if err != nil {
			return nil, errors.Wrapf(err, "instruction %d program", i)
		}

		instruction := Instruction{Program: program.PublicKey, Data: c.Data}
		for _, index := range c.Accounts {
			account, err := meta(index)
			if err != nil {
				return nil, errors.Wrapf(err, "instruction %d", i)
			}
			instruction.Accounts = append(instruction.Accounts, account)
		}
		instructions = append(instructions, instruction)
	}
	return instructions, nil
}

// IsSigner reports whether the account at index must sign.
func (m Message) IsSigner(index int) bool {
	return index < int(m.Header.NumSignatures)
}

// IsWritable reports whether the account at index is writable, following
// the header's signed/unsigned readonly counts.
func (m Message) IsWritable(index int) bool {
	signers := int(m.Header.NumSignatures)
	if index < signers {
		return index < signers-int(m.Header.NumReadonlySigned)
	}
	return index < len(m.Accounts)-int(m.Header.NumReadOnly)
}
