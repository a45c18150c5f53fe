package wgkey

import (
	"context"
	"fmt"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// NativeGenerator generates keys in-process, for hosts without wireguard-tools.
type NativeGenerator struct{}

func NewNativeGenerator() *NativeGenerator {
	return &NativeGenerator{}
}

func (g *NativeGenerator) Generate(ctx context.Context) (KeyPair, error) {
	if err := ctx.Err(); err != nil {
		return KeyPair{}, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}

	priv, err := wgtypes.GeneratePrivateKey()
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}
	return KeyPair{
		PrivateKey: PrivateKey(priv.String()),
		PublicKey:  priv.PublicKey().String(),
	}, nil
}
