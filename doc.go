/*
Package dnsupdater keeps a DNS record pointed at the current public IP address.

Usage will always start with [dnsupdater.New],
which validates the loop [Options] and returns a [Service].
New also requires a [ScopeFunc] which supplies a [Resolver] and an [Updater] for every cycle.
[Service.Run] then checks the address every CheckIntervalMs milliseconds
and calls the Updater only when the address differs from the last one it saw.

Resolvers are provided for external web services ([WebResolver]),
DNS based lookups ([DNSResolver]), local interfaces ([InterfaceResolver]) and fixed values ([FromString]).
Updaters are provided for Cloudflare ([NewCloudflareUpdater]) and RFC 2136 dynamic updates ([NewRFC2136Updater]).
*/
package dnsupdater
