package api

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
	"github.com/pzverkov/quantum-vault/pkg/crypto"
	"github.com/pzverkov/quantum-vault/pkg/hybrid"
	"github.com/pzverkov/quantum-vault/pkg/kex"
	"github.com/pzverkov/quantum-vault/pkg/session"
)

// maxBodyBytes bounds request bodies. A hex RSA or Kyber public key and a
// maximum-size message both fit.
const maxBodyBytes = 4 << 20

// KeyExchangeRequest is the body of the key pair and exchange endpoints.
type KeyExchangeRequest struct {
	SessionID string        `json:"session_id,omitempty"`
	Algorithm kex.Algorithm `json:"algorithm"`
	PublicKey string        `json:"public_key,omitempty"`
}

// MessageRequest is the body of /api/encrypt and /api/decrypt. Either
// SessionID and Algorithm name an established run, or Key carries a hex
// shared secret for the stateless form.
type MessageRequest struct {
	SessionID        string        `json:"session_id,omitempty"`
	Algorithm        kex.Algorithm `json:"algorithm,omitempty"`
	Key              string        `json:"key,omitempty"`
	Message          string        `json:"message,omitempty"`
	EncryptedMessage string        `json:"encrypted_message,omitempty"`
}

// SessionResponse identifies a session.
type SessionResponse struct {
	SessionID string `json:"session_id"`
}

// KeyPairMetrics describes a key generation.
type KeyPairMetrics struct {
	GenerationTimeMs float64 `json:"generation_time_ms"`
	KeySize          int     `json:"key_size"`
	PrivateKeySize   int     `json:"private_key_size"`
}

// KeyPairResponse is the result of /api/generate-keypair.
type KeyPairResponse struct {
	SessionID string         `json:"session_id"`
	Algorithm kex.Algorithm  `json:"algorithm"`
	PublicKey string         `json:"public_key"`
	Metrics   KeyPairMetrics `json:"metrics"`
}

// ExchangeMetrics describes an exchange.
type ExchangeMetrics struct {
	ExchangeTimeMs      float64 `json:"exchange_time_ms"`
	DecapsulationTimeMs float64 `json:"decapsulation_time_ms"`
	CiphertextSize      int     `json:"ciphertext_size"`
}

// ExchangeResponse is the result of /api/exchange-key.
type ExchangeResponse struct {
	SessionID  string          `json:"session_id"`
	Algorithm  kex.Algorithm   `json:"algorithm"`
	SharedKey  string          `json:"shared_key"`
	Ciphertext string          `json:"ciphertext"`
	Verified   bool            `json:"verified"`
	Metrics    ExchangeMetrics `json:"metrics"`
}

// FullExchangeResponse is the result of /api/full-exchange.
type FullExchangeResponse struct {
	SessionID  string                  `json:"session_id"`
	Algorithm  kex.Algorithm           `json:"algorithm"`
	PublicKey  string                  `json:"public_key"`
	SharedKey  string                  `json:"shared_key"`
	Ciphertext string                  `json:"ciphertext"`
	Verified   bool                    `json:"verified"`
	Metrics    session.ExchangeMetrics `json:"metrics"`
}

// EncryptMetrics describes an encryption.
type EncryptMetrics struct {
	EncryptionTimeMs float64 `json:"encryption_time_ms"`
	MessageSize      int     `json:"message_size"`
	EncryptedSize    int     `json:"encrypted_size"`
}

// EncryptResponse is the result of /api/encrypt.
type EncryptResponse struct {
	Algorithm        string         `json:"algorithm,omitempty"`
	EncryptedMessage string         `json:"encrypted_message"`
	Metrics          EncryptMetrics `json:"metrics"`
}

// DecryptMetrics describes a decryption.
type DecryptMetrics struct {
	DecryptionTimeMs float64 `json:"decryption_time_ms"`
}

// DecryptResponse is the result of /api/decrypt.
type DecryptResponse struct {
	Algorithm        string         `json:"algorithm,omitempty"`
	DecryptedMessage string         `json:"decrypted_message"`
	Metrics          DecryptMetrics `json:"metrics"`
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// decode reads a JSON body into v. Unknown algorithms surface as
// ErrUnsupportedAlgorithm; anything else unparsable is a bad request.
func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if qerrors.Is(err, qerrors.ErrUnsupportedAlgorithm) {
			return err
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func requireAlgorithm(alg kex.Algorithm) error {
	if alg == 0 {
		return fmt.Errorf("%w: algorithm is required", errBadRequest)
	}
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Quantum-Safe Vault API is running"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.newSession()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, SessionResponse{SessionID: sess.ID()})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGenerateKeyPair(w http.ResponseWriter, r *http.Request) {
	var req KeyExchangeRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := requireAlgorithm(req.Algorithm); err != nil {
		s.writeError(w, r, err)
		return
	}

	sess, err := s.sessionFor(req.SessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	kp, err := s.generateKeys(r.Context(), sess, req.Algorithm)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, KeyPairResponse{
		SessionID: sess.ID(),
		Algorithm: req.Algorithm,
		PublicKey: kp.PublicKeyHex(),
		Metrics: KeyPairMetrics{
			GenerationTimeMs: kp.Metrics.KeyGenTimeMs,
			KeySize:          kp.Metrics.KeySizeBytes,
			PrivateKeySize:   kp.Metrics.PrivateKeySizeBytes,
		},
	})
}

func (s *Server) handleExchangeKey(w http.ResponseWriter, r *http.Request) {
	var req KeyExchangeRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := requireAlgorithm(req.Algorithm); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.SessionID == "" {
		s.writeError(w, r, fmt.Errorf("%w: session_id is required", errBadRequest))
		return
	}

	pk, err := hex.DecodeString(req.PublicKey)
	if err != nil {
		s.writeError(w, r, qerrors.NewCryptoError("api.ExchangeKey", fmt.Errorf("%w: public_key is not hex", qerrors.ErrInvalidPublicKey)))
		return
	}

	sess, err := s.store.Get(req.SessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ex, err := sess.Exchange(r.Context(), req.Algorithm, pk)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer crypto.Zeroize(ex.SharedSecret)

	writeJSON(w, http.StatusOK, ExchangeResponse{
		SessionID:  sess.ID(),
		Algorithm:  req.Algorithm,
		SharedKey:  hex.EncodeToString(ex.SharedSecret),
		Ciphertext: hex.EncodeToString(ex.Ciphertext),
		Verified:   ex.Verified,
		Metrics: ExchangeMetrics{
			ExchangeTimeMs:      ex.Metrics.ExchangeTimeMs,
			DecapsulationTimeMs: ex.Metrics.DecapsulationTimeMs,
			CiphertextSize:      ex.Metrics.CiphertextSizeBytes,
		},
	})
}

func (s *Server) handleFullExchange(w http.ResponseWriter, r *http.Request) {
	var req KeyExchangeRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := requireAlgorithm(req.Algorithm); err != nil {
		s.writeError(w, r, err)
		return
	}

	sess, err := s.sessionFor(req.SessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	kp, err := s.generateKeys(r.Context(), sess, req.Algorithm)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ex, err := sess.Exchange(r.Context(), req.Algorithm, kp.PublicKey)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer crypto.Zeroize(ex.SharedSecret)

	writeJSON(w, http.StatusOK, FullExchangeResponse{
		SessionID:  sess.ID(),
		Algorithm:  req.Algorithm,
		PublicKey:  kp.PublicKeyHex(),
		SharedKey:  hex.EncodeToString(ex.SharedSecret),
		Ciphertext: hex.EncodeToString(ex.Ciphertext),
		Verified:   ex.Verified,
		Metrics:    ex.Metrics,
	})
}

// messageKey decodes the stateless shared secret.
func messageKey(key string) ([]byte, error) {
	secret, err := hex.DecodeString(key)
	if err != nil || len(secret) == 0 {
		return nil, qerrors.NewCryptoError("api.messageKey", fmt.Errorf("%w: key must be a hex shared secret", qerrors.ErrInvalidKeySize))
	}
	return secret, nil
}

func (s *Server) handleEncrypt(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if req.Key != "" {
		secret, err := messageKey(req.Key)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		defer crypto.Zeroize(secret)

		start := time.Now()
		out, err := hybrid.EncryptMessage(req.Message, secret)
		elapsed := time.Since(start)
		if err != nil {
			s.collector.RecordEncryptError()
			s.writeError(w, r, err)
			return
		}
		s.collector.RecordEncrypt(len(req.Message), elapsed)

		writeJSON(w, http.StatusOK, EncryptResponse{
			EncryptedMessage: out,
			Metrics:          EncryptMetrics{EncryptionTimeMs: ms(elapsed), MessageSize: len(req.Message), EncryptedSize: len(out)},
		})
		return
	}

	if err := requireAlgorithm(req.Algorithm); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.store.Get(req.SessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := sess.EncryptMessage(r.Context(), req.Algorithm, req.Message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, EncryptResponse{
		Algorithm:        req.Algorithm.String(),
		EncryptedMessage: res.Text,
		Metrics:          EncryptMetrics{EncryptionTimeMs: ms(res.Duration), MessageSize: res.InputSize, EncryptedSize: res.OutputSize},
	})
}

func (s *Server) handleDecrypt(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	encoded := req.EncryptedMessage
	if encoded == "" {
		encoded = req.Message
	}

	if req.Key != "" {
		secret, err := messageKey(req.Key)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		defer crypto.Zeroize(secret)

		start := time.Now()
		out, err := hybrid.DecryptMessage(encoded, secret)
		elapsed := time.Since(start)
		switch {
		case err == nil:
			s.collector.RecordDecrypt(len(out), elapsed)
		case qerrors.Is(err, qerrors.ErrAuthenticationFailed):
			s.collector.RecordAuthFailure()
		case qerrors.Is(err, qerrors.ErrMalformedInput):
			s.collector.RecordMalformedInput()
		default:
			s.collector.RecordDecryptError()
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, DecryptResponse{
			DecryptedMessage: out,
			Metrics:          DecryptMetrics{DecryptionTimeMs: ms(elapsed)},
		})
		return
	}

	if err := requireAlgorithm(req.Algorithm); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.store.Get(req.SessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := sess.DecryptMessage(r.Context(), req.Algorithm, encoded)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, DecryptResponse{
		Algorithm:        req.Algorithm.String(),
		DecryptedMessage: res.Text,
		Metrics:          DecryptMetrics{DecryptionTimeMs: ms(res.Duration)},
	})
}

func (s *Server) handleSecurityComparison(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, SecurityComparison(s.opts.Registry))
}

func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Compare())
}
