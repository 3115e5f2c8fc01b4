// Package clob is a native Go client for the Polymarket Central Limit
// Order Book: EIP-712 order signing and L2 HMAC request auth, adapted
// from the teacher's internal/arbitrage/clob.go and eip712.go so order
// submission never shells out to a signing subprocess.
package clob

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	cmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/oraclewindow/tradebot/internal/config"
)

const (
	polygonChainID     = 137
	ctfExchangeAddress = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
	zeroAddress        = "0x0000000000000000000000000000000000000000"
)

// Side is the CTF Exchange order side.
type Side uint8

const (
	SideBuy  Side = 0
	SideSell Side = 1
)

// TIF is the order time-in-force accepted by the CLOB API.
type TIF string

const (
	TIFFoK TIF = "FOK"
	TIFGTC TIF = "GTC"
)

// ctfOrder is the EIP-712 message signed for every order submission.
type ctfOrder struct {
	Salt          *big.Int
	Maker         common.Address
	Signer        common.Address
	Taker         common.Address
	TokenID       *big.Int
	MakerAmount   *big.Int
	TakerAmount   *big.Int
	Expiration    *big.Int
	Nonce         *big.Int
	FeeRateBps    *big.Int
	Side          uint8
	SignatureType uint8
}

// OrderResponse is the CLOB API's acknowledgement of a submitted order.
type OrderResponse struct {
	OrderID   string `json:"orderID"`
	Status    string `json:"status"`
	ErrorCode string `json:"errorCode,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Client signs and submits orders against the Polymarket CLOB.
type Client struct {
	baseURL       string
	apiKey        string
	apiSecret     string
	passphrase    string
	privateKey    *ecdsa.PrivateKey
	address       common.Address
	funderAddress common.Address
	sigType       config.SigType
	httpClient    *http.Client
}

// NewClient builds a signing CLOB client from POLY_PRIVATE_KEY/POLY_FUNDER.
func NewClient(cfg *config.Config) (*Client, error) {
	key := strings.TrimPrefix(cfg.PolyPrivateKey, "0x")
	pk, err := crypto.HexToECDSA(key)
	if err != nil {
		return nil, fmt.Errorf("invalid POLY_PRIVATE_KEY: %w", err)
	}
	signer := crypto.PubkeyToAddress(pk.PublicKey)

	funder := signer
	if cfg.PolyFunder != "" {
		funder = common.HexToAddress(cfg.PolyFunder)
	}

	c := &Client{
		baseURL:       cfg.CLOBBaseURL,
		privateKey:    pk,
		address:       signer,
		funderAddress: funder,
		sigType:       cfg.PolySigType,
		httpClient:    &http.Client{Timeout: 2 * time.Second},
	}

	creds, err := c.deriveAPICreds()
	if err != nil {
		return nil, fmt.Errorf("deriving CLOB API credentials: %w", err)
	}
	c.apiKey, c.apiSecret, c.passphrase = creds.APIKey, creds.Secret, creds.Passphrase

	log.Info().Str("signer", signer.Hex()).Str("funder", funder.Hex()).
		Int("sig_type", int(cfg.PolySigType)).Msg("clob client ready")
	return c, nil
}

type apiCreds struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

func (c *Client) deriveAPICreds() (*apiCreds, error) {
	ts := time.Now().Unix()
	sig, err := c.signAuthMessage(ts, 0)
	if err != nil {
		return nil, err
	}

	req, _ := http.NewRequest("GET", c.baseURL+"/auth/derive-api-key", nil)
	req.Header.Set("POLY_ADDRESS", c.funderAddress.Hex())
	req.Header.Set("POLY_SIGNATURE", sig)
	req.Header.Set("POLY_TIMESTAMP", strconv.FormatInt(ts, 10))
	req.Header.Set("POLY_NONCE", "0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("derive-api-key returned %d: %s", resp.StatusCode, body)
	}
	var creds apiCreds
	if err := json.Unmarshal(body, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

func (c *Client) signAuthMessage(timestamp, nonce int64) (string, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"ClobAuth": {
				{Name: "address", Type: "address"},
				{Name: "timestamp", Type: "string"},
				{Name: "nonce", Type: "uint256"},
				{Name: "message", Type: "string"},
			},
		},
		PrimaryType: "ClobAuth",
		Domain: apitypes.TypedDataDomain{
			Name:    "ClobAuthDomain",
			Version: "1",
			ChainId: cmath.NewHexOrDecimal256(polygonChainID),
		},
		Message: apitypes.TypedDataMessage{
			"address":   c.address.Hex(),
			"timestamp": strconv.FormatInt(timestamp, 10),
			"nonce":     fmt.Sprintf("%d", nonce),
			"message":   "This message attests that I control the given wallet",
		},
	}
	hash, err := hashTypedData(typedData)
	if err != nil {
		return "", err
	}
	sig, err := crypto.Sign(hash.Bytes(), c.privateKey)
	if err != nil {
		return "", err
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return fmt.Sprintf("0x%x", sig), nil
}

// PlaceOrder signs and submits a limit order at the given price/size for
// the requested side and time-in-force.
func (c *Client) PlaceOrder(tokenID string, side Side, price, size decimal.Decimal, tif TIF) (*OrderResponse, error) {
	order, err := c.buildOrder(tokenID, side, price, size)
	if err != nil {
		return nil, err
	}
	signature, err := c.signOrder(order)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"order": map[string]interface{}{
			"salt":          order.Salt.String(),
			"maker":         order.Maker.Hex(),
			"signer":        order.Signer.Hex(),
			"taker":         order.Taker.Hex(),
			"tokenId":       order.TokenID.String(),
			"makerAmount":   order.MakerAmount.String(),
			"takerAmount":   order.TakerAmount.String(),
			"expiration":    order.Expiration.String(),
			"nonce":         order.Nonce.String(),
			"feeRateBps":    order.FeeRateBps.String(),
			"side":          fmt.Sprintf("%d", order.Side),
			"signatureType": fmt.Sprintf("%d", order.SignatureType),
		},
		"signature": signature,
		"owner":     order.Maker.Hex(),
		"orderType": string(tif),
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequest("POST", c.baseURL+"/order", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	c.signL2Request(req, "POST", "/order", body)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("order request failed: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	var orderResp OrderResponse
	if err := json.Unmarshal(respBody, &orderResp); err != nil {
		return nil, fmt.Errorf("parsing order response: %w (body=%s)", err, respBody)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return &orderResp, fmt.Errorf("order rejected: %s - %s", orderResp.ErrorCode, orderResp.Message)
	}
	return &orderResp, nil
}

// GetOrderStatus polls the current status and fill amount of an order.
func (c *Client) GetOrderStatus(orderID string) (status string, filledSize decimal.Decimal, err error) {
	req, err := http.NewRequest("GET", c.baseURL+"/order/"+orderID, nil)
	if err != nil {
		return "", decimal.Zero, err
	}
	c.signL2Request(req, "GET", "/order/"+orderID, nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", decimal.Zero, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	var info struct {
		Status     string `json:"status"`
		SizeFilled string `json:"size_filled"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return "", decimal.Zero, err
	}
	filledSize, _ = decimal.NewFromString(info.SizeFilled)
	return info.Status, filledSize, nil
}

// CancelOrder requests cancellation of a resting order.
func (c *Client) CancelOrder(orderID string) error {
	body := []byte(fmt.Sprintf(`{"orderID":"%s"}`, orderID))
	req, err := http.NewRequest("DELETE", c.baseURL+"/order", bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.signL2Request(req, "DELETE", "/order", body)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("cancel failed: %s", respBody)
	}
	return nil
}

// MidPrice fetches the CLOB's quoted mid price for a token.
func (c *Client) MidPrice(tokenID string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/price?token_id=%s&side=BUY", c.baseURL, tokenID)
	resp, err := c.httpClient.Get(url)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("price lookup failed: %d", resp.StatusCode)
	}
	var result struct {
		Price string `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(result.Price)
}

// BookPrice fetches the best bid/ask for a token. No order path calls
// it; FoK limit prices come from MidPrice without a slippage band.
func (c *Client) BookPrice(tokenID string) (bestBid, bestAsk decimal.Decimal, err error) {
	url := fmt.Sprintf("%s/book?token_id=%s", c.baseURL, tokenID)
	resp, err := c.httpClient.Get(url)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, decimal.Zero, fmt.Errorf("book lookup failed: %d", resp.StatusCode)
	}
	var result struct {
		Bids []struct {
			Price string `json:"price"`
		} `json:"bids"`
		Asks []struct {
			Price string `json:"price"`
		} `json:"asks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if len(result.Bids) > 0 {
		bestBid, _ = decimal.NewFromString(result.Bids[0].Price)
	}
	if len(result.Asks) > 0 {
		bestAsk, _ = decimal.NewFromString(result.Asks[0].Price)
	}
	return bestBid, bestAsk, nil
}

func (c *Client) buildOrder(tokenID string, side Side, price, size decimal.Decimal) (*ctfOrder, error) {
	tokenIDInt := new(big.Int)
	if _, ok := tokenIDInt.SetString(tokenID, 10); !ok {
		return nil, fmt.Errorf("invalid token id: %s", tokenID)
	}

	priceF, _ := price.Float64()
	sizeF, _ := size.Float64()

	var makerAmount, takerAmount *big.Int
	if side == SideBuy {
		makerAmount = toUSDCUnits(sizeF * priceF)
		takerAmount = toUSDCUnits(sizeF)
	} else {
		makerAmount = toUSDCUnits(sizeF)
		takerAmount = toUSDCUnits(sizeF * priceF)
	}

	return &ctfOrder{
		Salt:          randomSalt(),
		Maker:         c.funderAddress,
		Signer:        c.address,
		Taker:         common.HexToAddress(zeroAddress),
		TokenID:       tokenIDInt,
		MakerAmount:   makerAmount,
		TakerAmount:   takerAmount,
		Expiration:    big.NewInt(0),
		Nonce:         big.NewInt(0),
		FeeRateBps:    big.NewInt(0),
		Side:          uint8(side),
		SignatureType: uint8(c.sigType),
	}, nil
}

func (c *Client) signOrder(order *ctfOrder) (string, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Order": {
				{Name: "salt", Type: "uint256"},
				{Name: "maker", Type: "address"},
				{Name: "signer", Type: "address"},
				{Name: "taker", Type: "address"},
				{Name: "tokenId", Type: "uint256"},
				{Name: "makerAmount", Type: "uint256"},
				{Name: "takerAmount", Type: "uint256"},
				{Name: "expiration", Type: "uint256"},
				{Name: "nonce", Type: "uint256"},
				{Name: "feeRateBps", Type: "uint256"},
				{Name: "side", Type: "uint8"},
				{Name: "signatureType", Type: "uint8"},
			},
		},
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              "Polymarket CTF Exchange",
			Version:           "1",
			ChainId:           cmath.NewHexOrDecimal256(polygonChainID),
			VerifyingContract: common.HexToAddress(ctfExchangeAddress).Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"salt":          order.Salt.String(),
			"maker":         order.Maker.Hex(),
			"signer":        order.Signer.Hex(),
			"taker":         order.Taker.Hex(),
			"tokenId":       order.TokenID.String(),
			"makerAmount":   order.MakerAmount.String(),
			"takerAmount":   order.TakerAmount.String(),
			"expiration":    order.Expiration.String(),
			"nonce":         order.Nonce.String(),
			"feeRateBps":    order.FeeRateBps.String(),
			"side":          fmt.Sprintf("%d", order.Side),
			"signatureType": fmt.Sprintf("%d", order.SignatureType),
		},
	}

	hash, err := hashTypedData(typedData)
	if err != nil {
		return "", err
	}
	sig, err := crypto.Sign(hash.Bytes(), c.privateKey)
	if err != nil {
		return "", fmt.Errorf("signing order: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return fmt.Sprintf("0x%x", sig), nil
}

func hashTypedData(typedData apitypes.TypedData) (common.Hash, error) {
	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return common.Hash{}, fmt.Errorf("hashing domain: %w", err)
	}
	messageHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return common.Hash{}, fmt.Errorf("hashing message: %w", err)
	}
	raw := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(messageHash)))
	return crypto.Keccak256Hash(raw), nil
}

// signL2Request adds the POLY_* HMAC auth headers required by the CLOB's
// authenticated REST surface (spec §6).
func (c *Client) signL2Request(req *http.Request, method, path string, body []byte) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	message := timestamp + method + path
	if len(body) > 0 {
		message += string(body)
	}

	secretBytes, err := base64.URLEncoding.DecodeString(c.apiSecret)
	if err != nil {
		padded := c.apiSecret
		if len(padded)%4 != 0 {
			padded += strings.Repeat("=", 4-len(padded)%4)
		}
		secretBytes, _ = base64.URLEncoding.DecodeString(padded)
	}

	h := hmac.New(sha256.New, secretBytes)
	h.Write([]byte(message))
	signature := base64.URLEncoding.EncodeToString(h.Sum(nil))

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("POLY_API_KEY", c.apiKey)
	req.Header.Set("POLY_SIGNATURE", signature)
	req.Header.Set("POLY_TIMESTAMP", timestamp)
	req.Header.Set("POLY_PASSPHRASE", c.passphrase)
	req.Header.Set("POLY_ADDRESS", c.address.Hex())
}

func toUSDCUnits(amount float64) *big.Int {
	return big.NewInt(int64(amount * 1e6))
}

func randomSalt() *big.Int {
	b := make([]byte, 32)
	for i := range b {
		b[i] = byte(rand.Intn(256))
	}
	return new(big.Int).SetBytes(b)
}
