package tron

import (
	"context"
	"fmt"
	"sync"

	"github.com/Shiwasmii/CunaPay.Api/internal/money"
)

// SendCall records one transfer submission made against the mock.
type SendCall struct {
	Kind   string // "usdt" or "trx"
	From   string
	To     string
	Amount money.Amount
}

// Mock is a scripted in-memory Gateway for tests. Zero value is usable:
// wallets are generated sequentially, balances read as zero, sends
// succeed with generated transaction ids, and receipts are absent until
// scripted.
type Mock struct {
	mu sync.Mutex

	walletSeq    int
	trxBalances  map[string]money.Amount
	usdtBalances map[string]money.Amount

	sendQueue []SendResult
	sendErr   error
	sendSeq   int

	receipts    map[string]*Receipt
	receiptErrs map[string]error

	Sends []SendCall
}

// NewMock builds an empty scripted gateway.
func NewMock() *Mock {
	return &Mock{
		trxBalances:  make(map[string]money.Amount),
		usdtBalances: make(map[string]money.Amount),
		receipts:     make(map[string]*Receipt),
		receiptErrs:  make(map[string]error),
	}
}

// SetTRXBalance scripts the native balance for an address.
func (m *Mock) SetTRXBalance(address string, amount money.Amount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trxBalances[address] = amount
}

// SetUSDTBalance scripts the token balance for an address.
func (m *Mock) SetUSDTBalance(address string, amount money.Amount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usdtBalances[address] = amount
}

// QueueSendResult scripts the outcome of the next transfer submission.
func (m *Mock) QueueSendResult(result SendResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendQueue = append(m.sendQueue, result)
}

// FailSends makes every submission return the given transport error.
func (m *Mock) FailSends(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// SetReceipt scripts the receipt returned for a chain transaction id.
func (m *Mock) SetReceipt(txid string, receipt *Receipt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts[txid] = receipt
}

// FailReceipt scripts a lookup error for a chain transaction id.
func (m *Mock) FailReceipt(txid string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receiptErrs[txid] = err
}

func (m *Mock) CreateWallet(context.Context) (Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.walletSeq++
	return Wallet{
		Address:    fmt.Sprintf("TMockAddr%04d", m.walletSeq),
		PrivateKey: fmt.Sprintf("mock-pk-%04d", m.walletSeq),
	}, nil
}

func (m *Mock) IsValidAddress(_ context.Context, address string) (bool, error) {
	return address != "", nil
}

func (m *Mock) TRXBalance(_ context.Context, address string) (money.Amount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trxBalances[address], nil
}

func (m *Mock) USDTBalance(_ context.Context, address string) (money.Amount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usdtBalances[address], nil
}

func (m *Mock) submit(kind, from, to string, amount money.Amount) (SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sends = append(m.Sends, SendCall{Kind: kind, From: from, To: to, Amount: amount})
	if m.sendErr != nil {
		return SendResult{}, m.sendErr
	}
	if len(m.sendQueue) > 0 {
		result := m.sendQueue[0]
		m.sendQueue = m.sendQueue[1:]
		return result, nil
	}
	m.sendSeq++
	return SendResult{OK: true, TxID: fmt.Sprintf("mock-txid-%04d", m.sendSeq)}, nil
}

func (m *Mock) SendUSDT(_ context.Context, from, _, to string, amount money.Amount) (SendResult, error) {
	return m.submit("usdt", from, to, amount)
}

func (m *Mock) SendTRX(_ context.Context, from, _, to string, amount money.Amount) (SendResult, error) {
	return m.submit("trx", from, to, amount)
}

func (m *Mock) TransactionInfo(_ context.Context, txid string) (*Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.receiptErrs[txid]; ok {
		return nil, err
	}
	return m.receipts[txid], nil
}

func (m *Mock) TRC20Transfers(context.Context, string, int, string) (TransferPage, error) {
	return TransferPage{}, nil
}

func (m *Mock) NativeTransactions(context.Context, string, int, string) (NativePage, error) {
	return NativePage{}, nil
}
