// Package secure keeps secret requirement values encrypted while they sit
// in process memory.
//
// Values typed in for encrypted requirements (anything ending in _PASSWORD,
// _SECRET or _SECRET_KEY, or marked encrypted in kapsel.yml) are cached by
// the local state as SecureBuffers. The buffer wraps a memguard Enclave:
// the plaintext is encrypted with XSalsa20Poly1305 and only decrypted into a
// locked buffer for the short moment it is needed.
//
//	buf, err := secure.NewSecureBuffer([]byte(answer))
//	if err != nil {
//	    return err
//	}
//	defer buf.Destroy()
//
//	value, err := buf.Reveal()
//
// Call memguard.Purge (done by cmd/kapsel before exit) to wipe every enclave
// key from memory.
package secure
