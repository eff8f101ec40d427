package store

import (
	"time"

	"gorm.io/gorm"
)

// VanityStatus is the lifecycle state of a pooled mint address.
type VanityStatus string

const (
	StatusAvailable VanityStatus = "available"
	StatusReserved  VanityStatus = "reserved"
	StatusUsed      VanityStatus = "used"
	StatusBurned    VanityStatus = "burned"
)

// VanityAddress is a pre-generated mint keypair held in the pool.
//
// Exactly one of the four states holds at a time: available rows carry no
// session or token, reserved rows carry a session, used rows carry a token,
// burned rows are terminal.
type VanityAddress struct {
	ID                 uint         `gorm:"primaryKey"`
	PublicKey          string       `gorm:"uniqueIndex;size:44"`
	SecretKeyEncrypted string       `gorm:"type:text"`
	Status             VanityStatus `gorm:"size:16;default:'available';index"`
	SessionID          *uint        `gorm:"index"`
	TokenID            *uint
	Attempts           uint64
	ElapsedSeconds     float64
	ReservedAt         *time.Time
	UsedAt             *time.Time
	CreatedAt          time.Time `gorm:"index"`
	UpdatedAt          time.Time
}

// Session tracks one launch request from deposit to deployment.
type Session struct {
	gorm.Model
	Blueprint                 string `gorm:"type:text"` // JSON token blueprint
	DepositAddress            string `gorm:"size:44"`
	WalletPrivateKeyEncrypted string `gorm:"type:text"`
	DepositAmount             float64
	FundingWallet             string `gorm:"size:64"`
	Status                    string `gorm:"size:20;default:'pending';index"` // pending, funded, deploying, completed, failed
	TokenID                   *uint
	ErrorMessage              string `gorm:"type:text"`
}

// Token is a deployed token plus its fee-collection wallet.
type Token struct {
	gorm.Model
	Venue                     string `gorm:"size:20;index"` // pump.fun, bags.fm, clanker, four.meme
	MintAddress               string `gorm:"uniqueIndex;size:64"`
	Name                      string `gorm:"size:64"`
	Symbol                    string `gorm:"size:16"`
	Description               string `gorm:"type:text"`
	ImageURL                  string `gorm:"type:text"`
	MetadataURI               string `gorm:"type:text"`
	WalletPublicKey           string `gorm:"size:64"`
	WalletPrivateKeyEncrypted string `gorm:"type:text"`
	CreatorWallet             string `gorm:"size:64"`
	Status                    string `gorm:"size:20;default:'active';index"` // active, graduated, dead
	GraduatedAt               *time.Time
	TotalFeesCollected        float64
	TotalBurned               float64
}

// Burn records one buyback-and-burn: native spent on the buy and tokens destroyed.
type Burn struct {
	gorm.Model
	TokenID      uint `gorm:"index"`
	NativeSpent  float64
	TokensBurned float64
	TxSignature  string `gorm:"size:128"`
}

// FeeDistribution records one Four.meme tax claim split across
// creator/buyback/treasury/gas shares.
type FeeDistribution struct {
	gorm.Model
	TokenID        uint   `gorm:"index"`
	CycleID        string `gorm:"size:36;index"`
	Chain          string `gorm:"size:10"`
	TotalClaimed   float64
	CreatorAmount  float64
	BuybackAmount  float64
	TreasuryAmount float64
	GasReserve     float64
	ClaimTxHash    string `gorm:"size:128"`
	CreatorTxHash  string `gorm:"size:128"`
	TreasuryTxHash string `gorm:"size:128"`
	Status         string `gorm:"size:20;default:'pending'"`
}

// BurnStats aggregates all recorded burns.
type BurnStats struct {
	TotalNativeSpent  float64
	TotalTokensBurned float64
	TotalBurns        int64
}

// PoolStats reports per-state counts of the vanity pool.
type PoolStats struct {
	Available int64 `json:"available"`
	Reserved  int64 `json:"reserved"`
	Used      int64 `json:"used"`
	Burned    int64 `json:"burned"`
	Total     int64 `json:"total"`
}
