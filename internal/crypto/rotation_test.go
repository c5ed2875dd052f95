package crypto

import (
	"fmt"
	"os"
	"testing"
)

// TestKeyRotation_HistoricalEventsStayVerifiableUnderOldKey checks that
// rotating the event log's signing key doesn't break verification of
// events already chained and signed under the previous key: a verifier
// holding the old public key must still accept them.
func TestKeyRotation_HistoricalEventsStayVerifiableUnderOldKey(t *testing.T) {
	const eventCount = 10
	keyPath := ".test_contextguard_key_rotation"

	t.Cleanup(func() {
		if err := os.Remove(keyPath); err != nil && !os.IsNotExist(err) {
			t.Errorf("removing key file: %v", err)
		}
		if err := os.Remove(keyPath + ".old"); err != nil && !os.IsNotExist(err) {
			t.Errorf("removing rotated-out key file: %v", err)
		}
	})

	signer, err := NewSigner(keyPath)
	if err != nil {
		t.Fatalf("creating signer: %v", err)
	}

	preRotationHashes := make([]string, eventCount)
	preRotationSigs := make([]string, eventCount)
	for i := 0; i < eventCount; i++ {
		hash := fmt.Sprintf("event-hash-before-rotation-%d", i)
		sig, err := signer.SignHash(hash)
		if err != nil {
			t.Fatalf("signing event %d before rotation: %v", i, err)
		}
		preRotationHashes[i] = hash
		preRotationSigs[i] = sig
	}

	oldPubKey := signer.GetPublicKey()

	// RotateKey overwrites keyPath with a fresh keypair; a caller who
	// wants the pre-rotation key recoverable must archive it first.
	preRotationKeyData, err := os.ReadFile(keyPath)
	if err != nil {
		t.Fatalf("reading pre-rotation key for archival: %v", err)
	}
	if err := os.WriteFile(keyPath+".old", preRotationKeyData, 0600); err != nil {
		t.Fatalf("archiving pre-rotation key: %v", err)
	}

	oldKey, newKey, err := signer.RotateKey(keyPath)
	if err != nil {
		t.Fatalf("rotating key: %v", err)
	}
	if oldKey != oldPubKey {
		t.Errorf("RotateKey returned old public key %s, want %s", oldKey, oldPubKey)
	}
	if newKey == oldKey {
		t.Error("rotated public key should differ from the key it replaces")
	}

	postRotationHashes := make([]string, eventCount)
	postRotationSigs := make([]string, eventCount)
	for i := 0; i < eventCount; i++ {
		hash := fmt.Sprintf("event-hash-after-rotation-%d", i)
		sig, err := signer.SignHash(hash)
		if err != nil {
			t.Fatalf("signing event %d after rotation: %v", i, err)
		}
		postRotationHashes[i] = hash
		postRotationSigs[i] = sig
	}

	for i := 0; i < eventCount; i++ {
		if signer.VerifySignature(preRotationHashes[i], preRotationSigs[i]) {
			t.Errorf("event %d signed under the old key should not verify under the new key", i)
		}
	}
	for i := 0; i < eventCount; i++ {
		if !signer.VerifySignature(postRotationHashes[i], postRotationSigs[i]) {
			t.Errorf("event %d signed under the new key should verify under the new key", i)
		}
	}

	if _, err := os.Stat(keyPath + ".old"); err != nil {
		t.Fatalf("expected the archived pre-rotation key to survive RotateKey at %s.old: %v", keyPath, err)
	}

	if err := os.Rename(keyPath, keyPath+".new"); err != nil {
		t.Fatalf("setting aside the rotated key: %v", err)
	}
	if err := os.Rename(keyPath+".old", keyPath); err != nil {
		t.Fatalf("restoring the pre-rotation key: %v", err)
	}

	restoredOldSigner, err := NewSigner(keyPath)
	if err != nil {
		t.Fatalf("reloading the pre-rotation key: %v", err)
	}
	for i := 0; i < eventCount; i++ {
		if !restoredOldSigner.VerifySignature(preRotationHashes[i], preRotationSigs[i]) {
			t.Errorf("event %d should verify when the pre-rotation key is restored", i)
		}
	}

	if err := os.Rename(keyPath, keyPath+".old"); err != nil {
		t.Fatalf("re-archiving the pre-rotation key: %v", err)
	}
	if err := os.Rename(keyPath+".new", keyPath); err != nil {
		t.Fatalf("restoring the post-rotation key: %v", err)
	}
}

// TestSigningKey_BackupAndRestore checks that a signing key backed up
// before an operator-initiated restore still produces a signer that
// verifies signatures made with the original key.
func TestSigningKey_BackupAndRestore(t *testing.T) {
	keyPath := ".test_contextguard_key_backup"
	backupPath := keyPath + ".backup"

	t.Cleanup(func() {
		if err := os.Remove(keyPath); err != nil && !os.IsNotExist(err) {
			t.Errorf("removing key file: %v", err)
		}
		if err := os.Remove(backupPath); err != nil && !os.IsNotExist(err) {
			t.Errorf("removing backup file: %v", err)
		}
	})

	signer, err := NewSigner(keyPath)
	if err != nil {
		t.Fatalf("creating signer: %v", err)
	}

	eventHash := "session-genesis-hash-under-test"
	sig, err := signer.SignHash(eventHash)
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	pubKey := signer.GetPublicKey()

	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		t.Fatalf("reading key for backup: %v", err)
	}
	if err := os.WriteFile(backupPath, keyData, 0600); err != nil {
		t.Fatalf("writing backup: %v", err)
	}

	if err := os.Remove(keyPath); err != nil && !os.IsNotExist(err) {
		t.Fatalf("removing original key: %v", err)
	}
	if err := os.Rename(backupPath, keyPath); err != nil {
		t.Fatalf("restoring from backup: %v", err)
	}

	restored, err := NewSigner(keyPath)
	if err != nil {
		t.Fatalf("loading restored key: %v", err)
	}

	if restored.GetPublicKey() != pubKey {
		t.Errorf("restored public key mismatch: got %s, want %s", restored.GetPublicKey(), pubKey)
	}
	if !restored.VerifySignature(eventHash, sig) {
		t.Error("restored signer should verify a signature made before the backup/restore cycle")
	}
}
