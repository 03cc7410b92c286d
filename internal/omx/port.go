package omx

// GetPort queries the current definition of port.
func GetPort(c Component, port PortIndex) (PortDefinition, error) {
	def := PortDefinition{Port: port}
	if err := c.GetParameter(&def); err != nil {
		log.Error("Failed to get %v port: %v", port, err)
		return PortDefinition{}, NewError(ErrConfig, "get port definition", port, err)
	}
	return def, nil
}

// SetBufferCount sets the number of buffers the port will use. n must not be
// below the component-reported minimum; such a request fails without
// touching the port definition.
func SetBufferCount(c Component, port PortIndex, n uint32) error {
	if n == 0 {
		return NewError(ErrConfig, "set buffer count", port, ErrBelowMinimum)
	}

	def, err := GetPort(c, port)
	if err != nil {
		return err
	}

	if n < def.BufferCountMin {
		log.Error("Port '%v' requires no less than %d buffers", port, def.BufferCountMin)
		return NewError(ErrConfig, "set buffer count", port, ErrBelowMinimum)
	}

	def.BufferCountActual = n
	if err := c.SetParameter(&def); err != nil {
		log.Error("Failed to set buffer count of %v port: %v", port, err)
		return NewError(ErrConfig, "set buffer count", port, rejected(err))
	}
	return nil
}

// SetFormat applies update to the port's video format and writes the whole
// definition back.
func SetFormat(c Component, port PortIndex, update func(*VideoFormat)) error {
	def, err := GetPort(c, port)
	if err != nil {
		return err
	}

	update(&def.Video)

	if err := c.SetParameter(&def); err != nil {
		log.Error("Failed to set format of %v port: %v", port, err)
		return NewError(ErrConfig, "set format", port, rejected(err))
	}
	return nil
}

// SetOutputColorFormat selects the raw format a decoder writes.
func SetOutputColorFormat(c Component, color ColorFormat) error {
	return SetFormat(c, OutputPort, func(f *VideoFormat) {
		f.Color = color
	})
}

// SetInputFrameFormat describes the raw frames an encoder reads.
func SetInputFrameFormat(c Component, width, height uint32, color ColorFormat) error {
	return SetFormat(c, InputPort, func(f *VideoFormat) {
		f.FrameWidth = width
		f.FrameHeight = height
		f.Stride = int32(Stride(width))
		f.SliceHeight = SliceHeight(height)
		f.Color = color
	})
}

// SetOutputCompression selects the coding an encoder produces.
func SetOutputCompression(c Component, coding Coding) error {
	return SetFormat(c, OutputPort, func(f *VideoFormat) {
		f.Compression = coding
	})
}

// SetBitrate configures the encoder's rate control on port.
func SetBitrate(c Component, port PortIndex, bitrate uint32, mode ControlRate) error {
	if bitrate == 0 {
		return NewError(ErrConfig, "set bitrate", port, ErrSetRejected)
	}

	ctrl := VideoBitrate{Port: port}
	if err := c.GetParameter(&ctrl); err != nil {
		log.Error("Failed to get bitrate control of %v port: %v", port, err)
		return NewError(ErrConfig, "get bitrate", port, err)
	}

	ctrl.TargetBitrate = bitrate
	ctrl.ControlRate = mode
	if err := c.SetParameter(&ctrl); err != nil {
		return NewError(ErrConfig, "set bitrate", port, rejected(err))
	}
	return nil
}

// SetFrameRate writes fixed-rate VUI timing. The time scale is twice the
// frame rate because each frame spans two field ticks.
func SetFrameRate(c Component, port PortIndex, fps uint32) error {
	timing := AVCTiming{
		Port:              port,
		TimeScale:         fps * 2,
		NumUnitsInTick:    1,
		FixedFrameRate:    true,
		TimingInfoPresent: true,
	}
	if err := c.SetParameter(&timing); err != nil {
		return NewError(ErrConfig, "set frame rate", port, rejected(err))
	}
	return nil
}

type rejection struct {
	err error
}

func (r rejection) Error() string {
	return ErrSetRejected.Error() + ": " + r.err.Error()
}

func (r rejection) Unwrap() error {
	return r.err
}

func (r rejection) Is(target error) bool {
	return target == ErrSetRejected
}

// rejected marks err as a SetParameter refusal while keeping the
// component's code reachable through errors.As.
func rejected(err error) error {
	return rejection{err}
}
