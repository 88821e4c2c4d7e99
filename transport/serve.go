// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

import (
	"context"
	"encoding/hex"
	"io"
	"log/slog"

	rtupacket "github.com/ffutop/drt301m/modbus/rtu"
)

// ServeRTU answers the RTU requests read from rw until ctx is done or
// reading fails. Frames with a bad CRC are dropped without an answer.
func ServeRTU(ctx context.Context, rw io.ReadWriter, handler RequestHandler) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		raw, err := rtupacket.ReadRequest(rw)
		if err != nil {
			return err
		}

		adu, err := rtupacket.Decode(raw)
		if err != nil {
			slog.Warn("RTU frame decode failed", "frame", hex.EncodeToString(raw), "err", err)
			continue
		}

		respPdu, err := handler(ctx, adu.SlaveID, adu.Pdu)
		if err != nil {
			slog.Debug("Request not answered", "slave", adu.SlaveID, "err", err)
			continue
		}

		respRaw, err := (&rtupacket.ApplicationDataUnit{SlaveID: adu.SlaveID, Pdu: respPdu}).Encode()
		if err != nil {
			slog.Error("Failed to encode response", "err", err)
			continue
		}
		if _, err := rw.Write(respRaw); err != nil {
			return err
		}
	}
}
