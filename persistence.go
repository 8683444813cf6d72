package wacore

import "os"

// loadCachedNonce reads the challenge nonce persisted by a previous
// successful login, if ChallengeFile is configured and exists. A missing
// file is not an error — it just means the next handshake needs a full
// challenge round-trip.
func (cli *Client) loadCachedNonce() {
	if cli.cfg.ChallengeFile == "" {
		return
	}
	data, err := os.ReadFile(cli.cfg.ChallengeFile)
	if err != nil {
		return
	}
	cli.nonce = data
}

// saveCachedNonce atomically overwrites ChallengeFile with the current
// nonce, so the next process startup can attempt a one-round-trip login.
func (cli *Client) saveCachedNonce() {
	if cli.cfg.ChallengeFile == "" || len(cli.nonce) == 0 {
		return
	}
	tmp := cli.cfg.ChallengeFile + ".tmp"
	if err := os.WriteFile(tmp, cli.nonce, 0600); err != nil {
		cli.log.Warnf("Failed to write challenge cache: %v", err)
		return
	}
	if err := os.Rename(tmp, cli.cfg.ChallengeFile); err != nil {
		cli.log.Warnf("Failed to install challenge cache: %v", err)
	}
}
