// github.com/tve/pindevices contains a collection of device drivers for peripherals that are
// bit-banged directly on gpio pins: a 74HC595 driven 7-segment display, a DHT11 humidity and
// temperature sensor, an HC-SR04 ultrasonic ranger and a PWM dimmed LED. It uses periph for the
// low level access to the hardware pins. Each device driver is in its own directory and is
// stand-alone, the root package only holds the clock and pin helpers they share. Simple commands
// to test the devices can be found in the cmd directory tree.
package devices
