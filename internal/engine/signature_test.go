// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package engine

import (
	"crypto/md5"
	"encoding/base64"
	"testing"
)

func TestComputeSignature_EmptyProfileYieldsEmptySignature(t *testing.T) {
	if got := computeSignature(""); got != "" {
		t.Fatalf("computeSignature(\"\") = %q, want empty", got)
	}
}

func TestComputeSignature_MatchesMD5Base64(t *testing.T) {
	profile := "touch /a/out /a/in 1000"
	sum := md5.Sum([]byte(profile))
	want := Signature(base64.StdEncoding.EncodeToString(sum[:]))
	if got := computeSignature(profile); got != want {
		t.Fatalf("computeSignature(%q) = %q, want %q", profile, got, want)
	}
}

func TestProfileBuilder_OrderingIsPreserved(t *testing.T) {
	pb := newProfileBuilder("base")
	pb.addSignature("sigA")
	pb.addSourceFile("/a/in", 1000)
	pb.addSignature("sigA") // duplicate factor contributes twice, not deduped

	want := "basesigA /a/in 1000sigA"
	if got := pb.String(); got != want {
		t.Fatalf("profile = %q, want %q", got, want)
	}
}
