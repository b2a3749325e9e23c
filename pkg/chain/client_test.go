// Copyright 2025 Intmax2 Validity Prover
package chain

import "testing"

func TestEventTopic_Deterministic(t *testing.T) {
	a := EventTopic("Deposited(uint256,address,bytes32,uint32,uint256,bool,uint64,bytes32)")
	b := EventTopic("Deposited(uint256,address,bytes32,uint32,uint256,bool,uint64,bytes32)")
	if a != b {
		t.Errorf("EventTopic not deterministic: %x != %x", a, b)
	}
}

func TestEventTopic_DistinctSignaturesDiffer(t *testing.T) {
	a := EventTopic("Foo(uint256)")
	b := EventTopic("Bar(uint256)")
	if a == b {
		t.Error("expected different topics for different event signatures")
	}
}
