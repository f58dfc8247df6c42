// Package all blank-imports every portable CAN driver shipped with this
// module, so that importing it is enough to make can.NewBus recognize
// "socketcan", "socketcanv2", "socketcanv3", "socketcanring" and "virtual"
// interface names.
package all

import (
	_ "github.com/fieldbus-go/conet/pkg/can/socketcan"
	_ "github.com/fieldbus-go/conet/pkg/can/socketcanring"
	_ "github.com/fieldbus-go/conet/pkg/can/socketcanv2"
	_ "github.com/fieldbus-go/conet/pkg/can/socketcanv3"
	_ "github.com/fieldbus-go/conet/pkg/can/virtual"
)
