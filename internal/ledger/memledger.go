package ledger

import (
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/gridironmarkets/gridiron/internal/domain"
)

type account struct {
	asset   domain.AssetID
	owner   string // authority id, empty for non-custodial accounts
	balance uint64
}

type asset struct {
	authority string
	supply    uint64
}

// MemLedger is the in-process Ledger implementation. A mutex serializes all
// operations, and Transact snapshots state so a failed unit of work restores
// every balance and supply it touched.
type MemLedger struct {
	mu       sync.Mutex
	assets   map[domain.AssetID]*asset
	accounts map[domain.AccountID]*account
}

// NewMemLedger creates an empty MemLedger.
func NewMemLedger() *MemLedger {
	return &MemLedger{
		assets:   make(map[domain.AssetID]*asset),
		accounts: make(map[domain.AccountID]*account),
	}
}

// NewAuthority mints a fresh capability token.
func (l *MemLedger) NewAuthority() Authority {
	return Authority{id: uuid.New().String()}
}

// CreateAsset registers a new asset minted and burned under auth.
func (l *MemLedger) CreateAsset(auth Authority) (domain.AssetID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.createAssetLocked(auth)
}

func (l *MemLedger) createAssetLocked(auth Authority) (domain.AssetID, error) {
	if auth.id == "" {
		return "", ErrBadAuthority
	}
	id := domain.AssetID("asset-" + uuid.New().String())
	l.assets[id] = &asset{authority: auth.id}
	return id, nil
}

// CreateAccount opens an account for the given asset. A non-nil owner makes
// the account custodial.
func (l *MemLedger) CreateAccount(assetID domain.AssetID, owner *Authority) (domain.AccountID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.createAccountLocked(assetID, owner)
}

func (l *MemLedger) createAccountLocked(assetID domain.AssetID, owner *Authority) (domain.AccountID, error) {
	if _, ok := l.assets[assetID]; !ok {
		return "", ErrUnknownAsset
	}
	id := domain.AccountID("acct-" + uuid.New().String())
	acct := &account{asset: assetID}
	if owner != nil {
		acct.owner = owner.id
	}
	l.accounts[id] = acct
	return id, nil
}

// AssetOf returns the asset held by an account.
func (l *MemLedger) AssetOf(accountID domain.AccountID) (domain.AssetID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.accounts[accountID]
	if !ok {
		return "", ErrUnknownAccount
	}
	return acct.asset, nil
}

// Transfer moves amount from a non-custodial account to another account of
// the same asset.
func (l *MemLedger) Transfer(from, to domain.AccountID, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transferLocked(from, to, amount, "")
}

// TransferAuthorized moves amount out of a custodial account under its owner
// Authority.
func (l *MemLedger) TransferAuthorized(auth Authority, from, to domain.AccountID, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transferLocked(from, to, amount, auth.id)
}

func (l *MemLedger) transferLocked(from, to domain.AccountID, amount uint64, authID string) error {
	src, ok := l.accounts[from]
	if !ok {
		return ErrUnknownAccount
	}
	dst, ok := l.accounts[to]
	if !ok {
		return ErrUnknownAccount
	}
	if src.asset != dst.asset {
		return ErrUnknownAsset
	}
	if src.owner != authID {
		return ErrBadAuthority
	}
	if src.balance < amount {
		return ErrInsufficientFunds
	}
	if dst.balance > math.MaxUint64-amount {
		return ErrAmountOverflow
	}
	src.balance -= amount
	dst.balance += amount
	return nil
}

// Mint creates amount units of asset in the target account.
func (l *MemLedger) Mint(auth Authority, assetID domain.AssetID, to domain.AccountID, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mintLocked(auth, assetID, to, amount)
}

func (l *MemLedger) mintLocked(auth Authority, assetID domain.AssetID, to domain.AccountID, amount uint64) error {
	as, ok := l.assets[assetID]
	if !ok {
		return ErrUnknownAsset
	}
	if as.authority != auth.id {
		return ErrBadAuthority
	}
	acct, ok := l.accounts[to]
	if !ok {
		return ErrUnknownAccount
	}
	if acct.asset != assetID {
		return ErrUnknownAsset
	}
	if as.supply > math.MaxUint64-amount || acct.balance > math.MaxUint64-amount {
		return ErrAmountOverflow
	}
	as.supply += amount
	acct.balance += amount
	return nil
}

// Burn destroys amount units held by the given account.
func (l *MemLedger) Burn(assetID domain.AssetID, from domain.AccountID, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.burnLocked(assetID, from, amount)
}

func (l *MemLedger) burnLocked(assetID domain.AssetID, from domain.AccountID, amount uint64) error {
	as, ok := l.assets[assetID]
	if !ok {
		return ErrUnknownAsset
	}
	acct, ok := l.accounts[from]
	if !ok {
		return ErrUnknownAccount
	}
	if acct.asset != assetID {
		return ErrUnknownAsset
	}
	if acct.balance < amount {
		return ErrInsufficientFunds
	}
	acct.balance -= amount
	as.supply -= amount
	return nil
}

// Balance returns an account's current balance.
func (l *MemLedger) Balance(accountID domain.AccountID) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.accounts[accountID]
	if !ok {
		return 0, ErrUnknownAccount
	}
	return acct.balance, nil
}

// Supply returns the outstanding supply of an asset.
func (l *MemLedger) Supply(assetID domain.AssetID) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	as, ok := l.assets[assetID]
	if !ok {
		return 0, ErrUnknownAsset
	}
	return as.supply, nil
}

// Transact runs fn atomically. State is snapshotted up front and restored in
// full if fn fails, so partially-applied legs never persist.
func (l *MemLedger) Transact(fn func(Ledger) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	snapAssets := make(map[domain.AssetID]asset, len(l.assets))
	for id, as := range l.assets {
		snapAssets[id] = *as
	}
	snapAccounts := make(map[domain.AccountID]account, len(l.accounts))
	for id, acct := range l.accounts {
		snapAccounts[id] = *acct
	}

	if err := fn(&txLedger{l: l}); err != nil {
		l.assets = make(map[domain.AssetID]*asset, len(snapAssets))
		for id, as := range snapAssets {
			cp := as
			l.assets[id] = &cp
		}
		l.accounts = make(map[domain.AccountID]*account, len(snapAccounts))
		for id, acct := range snapAccounts {
			cp := acct
			l.accounts[id] = &cp
		}
		return err
	}
	return nil
}

// txLedger exposes the MemLedger inside a Transact callback without
// re-acquiring the mutex. Nested Transact calls run in the enclosing unit of
// work.
type txLedger struct {
	l *MemLedger
}

func (t *txLedger) NewAuthority() Authority {
	return Authority{id: uuid.New().String()}
}

func (t *txLedger) CreateAsset(auth Authority) (domain.AssetID, error) {
	return t.l.createAssetLocked(auth)
}

func (t *txLedger) CreateAccount(assetID domain.AssetID, owner *Authority) (domain.AccountID, error) {
	return t.l.createAccountLocked(assetID, owner)
}

func (t *txLedger) AssetOf(accountID domain.AccountID) (domain.AssetID, error) {
	acct, ok := t.l.accounts[accountID]
	if !ok {
		return "", ErrUnknownAccount
	}
	return acct.asset, nil
}

func (t *txLedger) Transfer(from, to domain.AccountID, amount uint64) error {
	return t.l.transferLocked(from, to, amount, "")
}

func (t *txLedger) TransferAuthorized(auth Authority, from, to domain.AccountID, amount uint64) error {
	return t.l.transferLocked(from, to, amount, auth.id)
}

func (t *txLedger) Mint(auth Authority, assetID domain.AssetID, to domain.AccountID, amount uint64) error {
	return t.l.mintLocked(auth, assetID, to, amount)
}

func (t *txLedger) Burn(assetID domain.AssetID, from domain.AccountID, amount uint64) error {
	return t.l.burnLocked(assetID, from, amount)
}

func (t *txLedger) Balance(accountID domain.AccountID) (uint64, error) {
	acct, ok := t.l.accounts[accountID]
	if !ok {
		return 0, ErrUnknownAccount
	}
	return acct.balance, nil
}

func (t *txLedger) Supply(assetID domain.AssetID) (uint64, error) {
	as, ok := t.l.assets[assetID]
	if !ok {
		return 0, ErrUnknownAsset
	}
	return as.supply, nil
}

func (t *txLedger) Transact(fn func(Ledger) error) error {
	return fn(t)
}
